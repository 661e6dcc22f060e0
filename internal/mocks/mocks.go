package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/models"
	"chat-sync/internal/pagecache"
	"chat-sync/internal/transport"
)

type MessageStoreMock struct {
	mock.Mock
}

func (m *MessageStoreMock) GetPage(ctx context.Context, conversationID string, cursor string, limit int) ([]models.Message, bool, error) {
	args := m.Called(ctx, conversationID, cursor, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Bool(1), args.Error(2)
}

func (m *MessageStoreMock) Upsert(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageStoreMock) UpsertStatus(ctx context.Context, messageID string, status models.Status) error {
	args := m.Called(ctx, messageID, status)
	return args.Error(0)
}

func (m *MessageStoreMock) ReplaceID(ctx context.Context, oldID string, msg models.Message) error {
	args := m.Called(ctx, oldID, msg)
	return args.Error(0)
}

func (m *MessageStoreMock) Remove(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type ConversationStoreMock struct {
	mock.Mock
}

func (m *ConversationStoreMock) List(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var out []models.ConversationSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.ConversationSummary)
	}
	return out, args.Error(1)
}

func (m *ConversationStoreMock) Upsert(ctx context.Context, userID string, summary models.ConversationSummary) error {
	args := m.Called(ctx, userID, summary)
	return args.Error(0)
}

func (m *ConversationStoreMock) Get(ctx context.Context, conversationID string) (models.ConversationSummary, error) {
	args := m.Called(ctx, conversationID)
	var summary models.ConversationSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.ConversationSummary)
	}
	return summary, args.Error(1)
}

type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) SendMessage(ctx context.Context, req transport.SendRequest) (models.Message, error) {
	args := m.Called(ctx, req)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *TransportMock) FetchPage(ctx context.Context, conversationID string, page, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, page, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *TransportMock) FetchBefore(ctx context.Context, conversationID, beforeID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *TransportMock) FetchConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var out []models.ConversationSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.ConversationSummary)
	}
	return out, args.Error(1)
}

func (m *TransportMock) MarkRead(ctx context.Context, conversationID string, messageIDs []string) error {
	args := m.Called(ctx, conversationID, messageIDs)
	return args.Error(0)
}

func (m *TransportMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *TransportMock) EditMessage(ctx context.Context, messageID, newContent string) (models.Message, error) {
	args := m.Called(ctx, messageID, newContent)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type PageCacheMock struct {
	mock.Mock
}

func (m *PageCacheMock) Get(ctx context.Context, conversationID string, limit int) (pagecache.Page, error) {
	args := m.Called(ctx, conversationID, limit)
	var page pagecache.Page
	if val := args.Get(0); val != nil {
		page = val.(pagecache.Page)
	}
	return page, args.Error(1)
}

func (m *PageCacheMock) Set(ctx context.Context, conversationID string, limit int, page pagecache.Page) error {
	args := m.Called(ctx, conversationID, limit, page)
	return args.Error(0)
}

func (m *PageCacheMock) Invalidate(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *PageCacheMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
