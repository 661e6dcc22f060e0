package models

import "time"

// ConversationSummary provides the API-friendly view of a conversation.
type ConversationSummary struct {
	ConversationID string    `db:"id" json:"conversation_id"`
	Title          string    `db:"title" json:"title,omitempty"`
	LastMessageID  string    `db:"last_message_id" json:"last_message_id,omitempty"`
	UnreadCount    int       `db:"unread_count" json:"unread_count"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
