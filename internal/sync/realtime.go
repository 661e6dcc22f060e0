package sync

import (
	"context"
	"errors"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// HandleIncomingMessage merges an inbound new-message event into the view.
// Events for conversations with no open view are ignored. The same server
// event may be redelivered by the transport, so duplicate suppression is
// unconditional.
func (c *Core) HandleIncomingMessage(ctx context.Context, msg models.Message) {
	s, ok := c.peekSession(msg.ConversationID)
	if !ok {
		observability.IncReconcile("message", "ignored")
		c.logger.Debug().Str("conversation_id", msg.ConversationID).Msg("incoming message for closed view ignored")
		return
	}

	err := s.lane.do(func() {
		incoming := msg
		if incoming.SenderID != c.opts.UserID {
			incoming.Status = models.StatusDelivered
		} else if incoming.Status == "" {
			incoming.Status = models.StatusSent
		}

		// Exact identity match: a redelivered event replaces in place.
		if idx := s.view.IndexOf(incoming.ID); idx >= 0 {
			if incoming.Status.Rank() < s.view.Messages[idx].Status.Rank() {
				incoming.Status = s.view.Messages[idx].Status
			}
			incoming.CreatedAt = s.view.Messages[idx].CreatedAt
			s.view.Messages[idx] = incoming
			c.persist(ctx, incoming)
			observability.IncReconcile("message", "replaced")
			c.emitView(s)
			return
		}

		// The event may be the echo of an outstanding optimistic send.
		if provisionalID := s.pending.Resolve(msg); provisionalID != "" {
			if idx := s.view.IndexOf(provisionalID); idx >= 0 {
				settled := s.view.Messages[idx]
				settled.ID = incoming.ID
				if incoming.Status.Rank() > settled.Status.Rank() {
					settled.Status = incoming.Status
				} else if settled.Status == models.StatusSending {
					settled.Status = models.StatusSent
				}
				s.view.Messages[idx] = settled
				s.pending.Remove(provisionalID)
				if err := c.store.ReplaceID(ctx, provisionalID, settled); err != nil {
					c.logger.Error().Err(err).Str("message_id", settled.ID).Msg("store identity swap failed")
				}
				observability.IncReconcile("message", "settled")
				c.emitView(s)
				return
			}
		}

		s.insertHead(incoming)
		c.persist(ctx, incoming)
		observability.IncReconcile("message", "inserted")
		c.emitView(s)
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Error().Err(err).Msg("incoming message reconcile failed")
	}
	c.recordPendingGauge()
}

// HandleDeliveryUpdate applies a status-change signal to the message,
// wherever it is in the open views. Status transitions are monotonic as
// observed by the UI: stale events are dropped, and an update for an
// unknown message is meaningless to the current view so no placeholder is
// synthesized.
func (c *Core) HandleDeliveryUpdate(ctx context.Context, update models.DeliveryUpdate) {
	status, ok := models.StatusFromWire(update.Status)
	if !ok {
		observability.IncReconcile("status", "malformed")
		c.logger.Warn().Str("status", string(update.Status)).Msg("unknown wire status dropped")
		return
	}

	for _, s := range c.openSessions() {
		var outcome string
		err := s.lane.do(func() {
			switch err := s.applyStatus(update.MessageID, status); {
			case err == nil:
				outcome = "applied"
				if err := c.store.UpsertStatus(ctx, update.MessageID, status); err != nil {
					c.logger.Error().Err(err).Str("message_id", update.MessageID).Msg("status persist failed")
				}
				c.emitView(s)
			case errors.Is(err, ErrStaleTransition):
				outcome = "stale"
			default:
				outcome = ""
			}
		})
		if err != nil {
			return
		}
		if outcome != "" {
			observability.IncReconcile("status", outcome)
			return
		}
	}
	observability.IncReconcile("status", "unknown_message")
	c.logger.Debug().Str("message_id", update.MessageID).Msg("delivery update for unknown message dropped")
}
