package transport

import (
	"context"
	"errors"
	"fmt"

	"chat-sync/internal/models"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("backend rejected request")
)

// Error wraps a network-level failure talking to the backend.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SendRequest carries a compose request to the backend. ClientTag is the
// provisional id; a backend that echoes it in message metadata correlates
// the acknowledgement with the optimistic insert explicitly.
type SendRequest struct {
	ConversationID string             `json:"conversation_id"`
	SenderID       string             `json:"sender_id"`
	Type           models.MessageType `json:"type"`
	Content        string             `json:"content,omitempty"`
	MediaIDs       []string           `json:"media_ids,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	ReplyToID      string             `json:"reply_to_id,omitempty"`
	ClientTag      string             `json:"client_tag"`
}

// Transport is the injected port through which the core reaches the chat
// backend. The core never constructs a concrete transport itself.
type Transport interface {
	SendMessage(ctx context.Context, req SendRequest) (models.Message, error)
	FetchPage(ctx context.Context, conversationID string, page, limit int) ([]models.Message, error)
	FetchBefore(ctx context.Context, conversationID, beforeID string, limit int) ([]models.Message, error)
	FetchConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	MarkRead(ctx context.Context, conversationID string, messageIDs []string) error
	DeleteMessage(ctx context.Context, messageID string) error
	EditMessage(ctx context.Context, messageID, newContent string) (models.Message, error)
}
