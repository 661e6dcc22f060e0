package models

// ConversationView is the externally observable snapshot of one
// conversation. Messages are ordered newest-first with unique identities.
// Consumers receive copies; the core owns the only mutable instance.
type ConversationView struct {
	ConversationID  string            `json:"conversation_id"`
	Messages        []Message         `json:"messages"`
	HasMoreMessages bool              `json:"has_more_messages"`
	IsLoadingMore   bool              `json:"is_loading_more"`
	IsRefreshing    bool              `json:"is_refreshing"`
	TypingUsers     map[string]string `json:"typing_users,omitempty"`
}

// Clone returns a deep copy safe to hand to consumers.
func (v ConversationView) Clone() ConversationView {
	out := v
	out.Messages = make([]Message, len(v.Messages))
	copy(out.Messages, v.Messages)
	if v.TypingUsers != nil {
		out.TypingUsers = make(map[string]string, len(v.TypingUsers))
		for id, name := range v.TypingUsers {
			out.TypingUsers[id] = name
		}
	}
	return out
}

// IndexOf returns the position of the message with the given id, or -1.
func (v ConversationView) IndexOf(messageID string) int {
	for i, m := range v.Messages {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}
