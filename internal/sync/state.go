package sync

import (
	"chat-sync/internal/models"
)

// Phase is the explicit lifecycle state of one conversation view. Handlers
// switch on it exhaustively instead of probing the view's contents.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

type fetchMode int

const (
	fetchNone fetchMode = iota
	fetchCold
	fetchLatest
	fetchMore
	fetchRefresh
)

func (m fetchMode) String() string {
	switch m {
	case fetchCold:
		return "cold"
	case fetchLatest:
		return "latest"
	case fetchMore:
		return "more"
	case fetchRefresh:
		return "refresh"
	default:
		return "none"
	}
}

// session holds everything the core owns for one open conversation: the
// view, its phase, the pending-send registry and the sequential lane. All
// view mutations happen on the lane.
type session struct {
	view    models.ConversationView
	phase   Phase
	fetch   fetchMode
	pending *PendingRegistry
	lane    *lane
	lastErr error
}

// beginFetch claims the fetch slot for mode. A conversation admits one
// fetch at a time; a conflicting fetch is rejected, not queued.
func (s *session) beginFetch(mode fetchMode) bool {
	if s.fetch != fetchNone {
		return false
	}
	s.fetch = mode
	return true
}

func (s *session) endFetch() {
	s.fetch = fetchNone
}

// insertHead places msg at the newest end of the list.
func (s *session) insertHead(msg models.Message) {
	s.view.Messages = append([]models.Message{msg}, s.view.Messages...)
}

// replaceMessages swaps the message list wholesale, preserving the
// transient typing map.
func (s *session) replaceMessages(msgs []models.Message, hasMore bool) {
	s.view.Messages = msgs
	s.view.HasMoreMessages = hasMore
	s.phase = PhaseLoaded
	s.lastErr = nil
}

// appendOlder appends older messages at the tail, skipping identities the
// view already holds (a realtime insert may have landed mid-fetch).
func (s *session) appendOlder(msgs []models.Message) {
	for _, m := range msgs {
		if s.view.IndexOf(m.ID) >= 0 {
			continue
		}
		s.view.Messages = append(s.view.Messages, m)
	}
}

// applyStatus writes a status in place if the transition is a legal
// forward move. It returns ErrStaleTransition for regressions and
// ErrUnknownMessage when the id is not in the view.
func (s *session) applyStatus(messageID string, status models.Status) error {
	idx := s.view.IndexOf(messageID)
	if idx < 0 {
		return ErrUnknownMessage
	}
	current := s.view.Messages[idx].Status
	if !current.CanTransition(status) {
		return ErrStaleTransition
	}
	s.view.Messages[idx].Status = status
	return nil
}
