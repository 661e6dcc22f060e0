package sync

import (
	"encoding/json"
	"sync"
	"time"

	"chat-sync/internal/models"
)

// Fingerprint is the bounded-uncertainty match key registered for each
// outstanding send. It is the fallback when the backend does not echo the
// client tag; matching is limited to the same conversation and sender,
// exact content, and a short time window.
type Fingerprint struct {
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// PendingRegistry maps provisional message ids to the compose requests
// still awaiting acknowledgement. It is best-effort de-duplication, not a
// guarantee: two identical texts outside the window will not be merged.
type PendingRegistry struct {
	mu            sync.Mutex
	byProvisional map[string]Fingerprint
	window        time.Duration
}

// NewPendingRegistry constructs a registry with the given fuzzy-match
// window.
func NewPendingRegistry(window time.Duration) *PendingRegistry {
	return &PendingRegistry{
		byProvisional: make(map[string]Fingerprint),
		window:        window,
	}
}

// RegisterPending records an outstanding send under its provisional id.
func (p *PendingRegistry) RegisterPending(provisionalID string, fp Fingerprint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byProvisional[provisionalID] = fp
}

// Remove drops a pending entry once reconciled or definitively failed.
func (p *PendingRegistry) Remove(provisionalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byProvisional, provisionalID)
}

// Len returns the number of outstanding sends.
func (p *PendingRegistry) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byProvisional)
}

// Resolve returns the provisional id an inbound confirmed message settles,
// or "" when the message matches no outstanding send. An echoed client tag
// wins outright; the fingerprint comparison is the fallback.
func (p *PendingRegistry) Resolve(candidate models.Message) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tag := clientTag(candidate); tag != "" {
		if _, ok := p.byProvisional[tag]; ok {
			return tag
		}
	}

	for id, fp := range p.byProvisional {
		if fp.ConversationID != candidate.ConversationID || fp.SenderID != candidate.SenderID {
			continue
		}
		if fp.Content != candidate.Content {
			continue
		}
		delta := candidate.CreatedAt.Sub(fp.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= p.window {
			return id
		}
	}
	return ""
}

// IsSameMessage reports whether candidateID is the confirmed identity of
// the given outstanding provisional message.
func (p *PendingRegistry) IsSameMessage(provisionalID string, candidate models.Message) bool {
	return p.Resolve(candidate) == provisionalID
}

func clientTag(msg models.Message) string {
	if len(msg.Metadata) == 0 {
		return ""
	}
	var meta struct {
		ClientTag string `json:"client_tag"`
	}
	if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
		return ""
	}
	return meta.ClientTag
}
