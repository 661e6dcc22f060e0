package models

// EventType names a lifecycle event emitted by the sync core.
type EventType string

const (
	EventConversationsLoaded EventType = "conversations_loaded"
	EventMessagesLoaded      EventType = "messages_loaded"
	EventMessageSent         EventType = "message_sent"
	EventMessageEdited       EventType = "message_edited"
	EventFirstMessageSent    EventType = "first_message_sent"
	EventChatError           EventType = "chat_error"
)

// Event is broadcast to subscribed consumers whenever the core mutates
// state or a command fails.
type Event struct {
	Type           EventType             `json:"type"`
	ConversationID string                `json:"conversation_id,omitempty"`
	View           *ConversationView     `json:"view,omitempty"`
	Message        *Message              `json:"message,omitempty"`
	Conversations  []ConversationSummary `json:"conversations,omitempty"`
	Error          string                `json:"error,omitempty"`
}
