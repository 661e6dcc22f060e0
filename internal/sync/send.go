package sync

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/transport"
)

// SendCommand is a compose request from the UI layer.
type SendCommand struct {
	Type      models.MessageType
	Content   string
	MediaIDs  []string
	Metadata  map[string]any
	ReplyToID string
}

// SendMessage runs the optimistic send pipeline: synthesize a provisional
// message, show it immediately, dispatch, then fold the acknowledgement
// back into the view. A failed send stays visible in failed state so the
// user can retry or discard explicitly.
func (c *Core) SendMessage(ctx context.Context, conversationID string, cmd SendCommand) (models.Message, error) {
	if cmd.Content == "" && len(cmd.MediaIDs) == 0 {
		c.emitError(conversationID, ErrEmptyContent)
		return models.Message{}, ErrEmptyContent
	}
	if cmd.Type == "" {
		cmd.Type = models.MessageText
	}

	ctx, span := otel.Tracer("chat-sync/core").Start(ctx, "sync.send")
	defer span.End()

	s, err := c.session(conversationID)
	if err != nil {
		return models.Message{}, err
	}

	provisionalID := models.NewProvisionalID()
	meta := make(map[string]any, len(cmd.Metadata)+2)
	for k, v := range cmd.Metadata {
		meta[k] = v
	}
	meta["client_tag"] = provisionalID
	if len(cmd.MediaIDs) > 0 {
		meta["media_ids"] = cmd.MediaIDs
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return models.Message{}, err
	}

	provisional := models.Message{
		ID:             provisionalID,
		ConversationID: conversationID,
		SenderID:       c.opts.UserID,
		Type:           cmd.Type,
		Content:        cmd.Content,
		Metadata:       metaJSON,
		Status:         models.StatusSending,
		ReplyToID:      cmd.ReplyToID,
		CreatedAt:      time.Now().UTC(),
	}

	var wasEmpty bool
	err = s.lane.do(func() {
		wasEmpty = len(s.view.Messages) == 0
		s.insertHead(provisional)
		s.pending.RegisterPending(provisionalID, Fingerprint{
			ConversationID: conversationID,
			SenderID:       provisional.SenderID,
			Content:        provisional.Content,
			CreatedAt:      provisional.CreatedAt,
		})
		c.emitView(s)
	})
	if err != nil {
		return models.Message{}, err
	}
	c.recordPendingGauge()

	acked, sendErr := c.transport.SendMessage(ctx, transport.SendRequest{
		ConversationID: conversationID,
		SenderID:       provisional.SenderID,
		Type:           cmd.Type,
		Content:        cmd.Content,
		MediaIDs:       cmd.MediaIDs,
		Metadata:       meta,
		ReplyToID:      cmd.ReplyToID,
		ClientTag:      provisionalID,
	})

	var result models.Message
	err = s.lane.do(func() {
		if sendErr != nil {
			// The message stays in the list; only its status changes.
			if idx := s.view.IndexOf(provisionalID); idx >= 0 {
				s.view.Messages[idx].Status = models.StatusFailed
				result = s.view.Messages[idx]
			}
			c.emitView(s)
			return
		}
		result = c.foldAck(ctx, s, provisionalID, acked, wasEmpty)
	})
	if err != nil {
		return models.Message{}, err
	}
	c.recordPendingGauge()

	if sendErr != nil {
		observability.IncSend("failed")
		c.emitError(conversationID, sendErr)
		return result, sendErr
	}
	observability.IncSend("ok")
	return result, nil
}

// foldAck merges the transport acknowledgement into the view. The
// provisional entry's identity and status are replaced in place; a second
// copy is never appended. Runs on the lane.
func (c *Core) foldAck(ctx context.Context, s *session, provisionalID string, acked models.Message, wasEmpty bool) models.Message {
	confirmedID := acked.ID
	if confirmedID == "" {
		// Asynchronous backend: the ack may still carry the provisional id.
		confirmedID = provisionalID
	}

	idx := s.view.IndexOf(provisionalID)
	if idx < 0 {
		// The realtime echo won the race and already settled the
		// provisional entry. Only nudge the status forward if needed.
		idx = s.view.IndexOf(confirmedID)
		if idx >= 0 {
			if err := s.applyStatus(confirmedID, models.StatusSent); err == nil {
				c.persist(ctx, s.view.Messages[idx])
				c.emitView(s)
			}
			s.pending.Remove(provisionalID)
			return s.view.Messages[idx]
		}
		// View was replaced wholesale mid-send (refresh); fall back to
		// inserting the confirmed message at the head.
		idx = 0
		s.insertHead(confirmedMessage(s.view.ConversationID, acked, confirmedID))
	} else if confirmedID != provisionalID && s.view.IndexOf(confirmedID) >= 0 {
		// An echo without a client tag slipped past the pending match
		// and already occupies the confirmed identity. Drop the
		// provisional duplicate instead of renaming into a collision.
		s.view.Messages = append(s.view.Messages[:idx], s.view.Messages[idx+1:]...)
		idx = s.view.IndexOf(confirmedID)
		// The echo's status may already be ahead of sent; stale moves
		// are rejected by the ladder.
		_ = s.applyStatus(confirmedID, models.StatusSent)
	} else {
		confirmed := s.view.Messages[idx]
		confirmed.ID = confirmedID
		confirmed.Status = models.StatusSent
		if acked.Content != "" {
			confirmed.Content = acked.Content
		}
		if len(acked.Metadata) > 0 {
			confirmed.Metadata = acked.Metadata
		}
		s.view.Messages[idx] = confirmed
	}
	s.pending.Remove(provisionalID)

	msg := s.view.Messages[idx]
	if msg.ID != provisionalID {
		if err := c.store.ReplaceID(ctx, provisionalID, msg); err != nil {
			c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("store identity swap failed")
		}
	} else {
		c.persist(ctx, msg)
	}

	c.notifier.Notify(models.Event{
		Type:           models.EventMessageSent,
		ConversationID: s.view.ConversationID,
		Message:        &msg,
	})
	if wasEmpty {
		c.notifier.Notify(models.Event{
			Type:           models.EventFirstMessageSent,
			ConversationID: s.view.ConversationID,
			Message:        &msg,
		})
	}
	c.emitView(s)
	return msg
}

func confirmedMessage(conversationID string, acked models.Message, confirmedID string) models.Message {
	msg := acked
	msg.ID = confirmedID
	msg.ConversationID = conversationID
	if msg.Status == "" || msg.Status == models.StatusSending {
		msg.Status = models.StatusSent
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg
}

// RetryMessage re-dispatches a failed send. The only legal backward
// transition is failed back to sending.
func (c *Core) RetryMessage(ctx context.Context, conversationID, messageID string) (models.Message, error) {
	s, ok := c.peekSession(conversationID)
	if !ok {
		return models.Message{}, ErrUnknownMessage
	}

	var provisional models.Message
	var retryErr error
	err := s.lane.do(func() {
		idx := s.view.IndexOf(messageID)
		if idx < 0 {
			retryErr = ErrUnknownMessage
			return
		}
		if s.view.Messages[idx].Status != models.StatusFailed {
			retryErr = ErrNotFailed
			return
		}
		s.view.Messages[idx].Status = models.StatusSending
		provisional = s.view.Messages[idx]
		s.pending.RegisterPending(provisional.ID, Fingerprint{
			ConversationID: conversationID,
			SenderID:       provisional.SenderID,
			Content:        provisional.Content,
			CreatedAt:      provisional.CreatedAt,
		})
		c.emitView(s)
	})
	if err != nil {
		return models.Message{}, err
	}
	if retryErr != nil {
		return models.Message{}, retryErr
	}

	var mediaIDs []string
	var meta map[string]any
	if len(provisional.Metadata) > 0 {
		_ = json.Unmarshal(provisional.Metadata, &meta)
		if raw, ok := meta["media_ids"].([]any); ok {
			for _, v := range raw {
				if id, ok := v.(string); ok {
					mediaIDs = append(mediaIDs, id)
				}
			}
		}
	}

	acked, sendErr := c.transport.SendMessage(ctx, transport.SendRequest{
		ConversationID: conversationID,
		SenderID:       provisional.SenderID,
		Type:           provisional.Type,
		Content:        provisional.Content,
		MediaIDs:       mediaIDs,
		Metadata:       meta,
		ReplyToID:      provisional.ReplyToID,
		ClientTag:      provisional.ID,
	})

	var result models.Message
	err = s.lane.do(func() {
		if sendErr != nil {
			if idx := s.view.IndexOf(provisional.ID); idx >= 0 {
				s.view.Messages[idx].Status = models.StatusFailed
				result = s.view.Messages[idx]
			}
			c.emitView(s)
			return
		}
		result = c.foldAck(ctx, s, provisional.ID, acked, false)
	})
	if err != nil {
		return models.Message{}, err
	}
	c.recordPendingGauge()

	if sendErr != nil {
		observability.IncSend("failed")
		c.emitError(conversationID, sendErr)
		return result, sendErr
	}
	observability.IncSend("ok")
	return result, nil
}
