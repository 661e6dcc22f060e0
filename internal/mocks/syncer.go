package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/models"
	syncer "chat-sync/internal/sync"
)

// SyncerMock is a mock implementation of the handlers.Syncer interface.
type SyncerMock struct {
	mock.Mock
}

func (m *SyncerMock) LoadConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var out []models.ConversationSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.ConversationSummary)
	}
	return out, args.Error(1)
}

func (m *SyncerMock) LoadMessages(ctx context.Context, conversationID string, page, limit int) error {
	args := m.Called(ctx, conversationID, page, limit)
	return args.Error(0)
}

func (m *SyncerMock) LoadLatestMessages(ctx context.Context, conversationID string, limit int) error {
	args := m.Called(ctx, conversationID, limit)
	return args.Error(0)
}

func (m *SyncerMock) LoadMoreMessages(ctx context.Context, conversationID, oldestMessageID string, limit int) error {
	args := m.Called(ctx, conversationID, oldestMessageID, limit)
	return args.Error(0)
}

func (m *SyncerMock) RefreshMessages(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *SyncerMock) SendMessage(ctx context.Context, conversationID string, cmd syncer.SendCommand) (models.Message, error) {
	args := m.Called(ctx, conversationID, cmd)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *SyncerMock) RetryMessage(ctx context.Context, conversationID, messageID string) (models.Message, error) {
	args := m.Called(ctx, conversationID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *SyncerMock) MarkMessageRead(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *SyncerMock) MarkConversationRead(ctx context.Context, conversationID string, messageIDs []string) error {
	args := m.Called(ctx, conversationID, messageIDs)
	return args.Error(0)
}

func (m *SyncerMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *SyncerMock) EditMessage(ctx context.Context, messageID, newContent string) error {
	args := m.Called(ctx, messageID, newContent)
	return args.Error(0)
}

func (m *SyncerMock) UpdateTypingStatus(conversationID, userID, displayName string, isTyping bool) error {
	args := m.Called(conversationID, userID, displayName, isTyping)
	return args.Error(0)
}

func (m *SyncerMock) View(conversationID string) (models.ConversationView, bool) {
	args := m.Called(conversationID)
	var view models.ConversationView
	if val := args.Get(0); val != nil {
		view = val.(models.ConversationView)
	}
	return view, args.Bool(1)
}

func (m *SyncerMock) CloseConversation(conversationID string) {
	m.Called(conversationID)
}
