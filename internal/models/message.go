package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// ProvisionalPrefix namespaces client-generated message ids so they are
// recognizably temporary until the backend acknowledges the send.
const ProvisionalPrefix = "tmp_"

// MessageType identifies the payload kind of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVoice MessageType = "voice"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
)

// Message represents one chat message as seen by the view.
type Message struct {
	ID             string         `db:"id" json:"id"`
	ConversationID string         `db:"conversation_id" json:"conversation_id"`
	SenderID       string         `db:"sender_id" json:"sender_id"`
	Type           MessageType    `db:"type" json:"type"`
	Content        string         `db:"content" json:"content"`
	Metadata       types.JSONText `db:"metadata" json:"metadata,omitempty"`
	Status         Status         `db:"status" json:"status"`
	ReplyToID      string         `db:"reply_to_id" json:"reply_to_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// IsProvisional reports whether the message still carries a
// client-generated identity.
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// NewProvisionalID returns a fresh client-generated message identity.
func NewProvisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

// DeliveryUpdate is an inbound status-change signal for a message that was
// not necessarily authored locally.
type DeliveryUpdate struct {
	MessageID string     `json:"message_id"`
	Status    WireStatus `json:"status"`
}
