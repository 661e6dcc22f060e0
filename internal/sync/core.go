package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/pagecache"
	"chat-sync/internal/storage"
	"chat-sync/internal/transport"
)

// Notifier receives the events and view snapshots the core emits.
type Notifier interface {
	Notify(event models.Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(models.Event)

func (f NotifierFunc) Notify(event models.Event) { f(event) }

// MultiNotifier fans one event out to several notifiers.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(event models.Event) {
		for _, n := range notifiers {
			n.Notify(event)
		}
	})
}

// Options tunes the core.
type Options struct {
	// UserID is the local user; incoming messages from other senders are
	// marked delivered on arrival.
	UserID string
	// PageSize is the default fetch limit.
	PageSize int
	// MatchWindow bounds the fuzzy fallback when matching an inbound
	// message to an outstanding send.
	MatchWindow time.Duration
	// LaneBuffer sizes each conversation's task queue.
	LaneBuffer int
}

func (o *Options) withDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	if o.MatchWindow <= 0 {
		o.MatchWindow = 30 * time.Second
	}
	if o.LaneBuffer <= 0 {
		o.LaneBuffer = 64
	}
}

// Core reconciles optimistic local writes, paginated history reads and the
// realtime feeds into per-conversation view state. Each conversation is
// processed on its own sequential lane; no view is ever mutated
// concurrently.
type Core struct {
	store     storage.MessageStore
	convStore storage.ConversationStore
	cache     pagecache.Cache
	latest    *pagecache.ReadThrough
	transport transport.Transport
	notifier  Notifier
	logger    zerolog.Logger
	opts      Options

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	closeOnce sync.Once
}

// NewCore wires the core against its ports.
func NewCore(
	store storage.MessageStore,
	convStore storage.ConversationStore,
	cache pagecache.Cache,
	tr transport.Transport,
	notifier Notifier,
	logger zerolog.Logger,
	opts Options,
) *Core {
	opts.withDefaults()
	return &Core{
		store:     store,
		convStore: convStore,
		cache:     cache,
		latest:    pagecache.NewReadThrough(cache, logger),
		transport: tr,
		notifier:  notifier,
		logger:    logger.With().Str("component", "sync_core").Logger(),
		opts:      opts,
		sessions:  make(map[string]*session),
	}
}

// session returns the conversation's session, creating it on first use.
func (c *Core) session(conversationID string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if s, ok := c.sessions[conversationID]; ok {
		return s, nil
	}
	s := &session{
		view: models.ConversationView{
			ConversationID: conversationID,
			TypingUsers:    make(map[string]string),
		},
		phase:   PhaseInitial,
		pending: NewPendingRegistry(c.opts.MatchWindow),
		lane:    newLane(c.opts.LaneBuffer, c.logger.With().Str("conversation_id", conversationID).Logger()),
	}
	c.sessions[conversationID] = s
	return s, nil
}

// peekSession returns an existing session without creating one.
func (c *Core) peekSession(conversationID string) (*session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false
	}
	s, ok := c.sessions[conversationID]
	return s, ok
}

// openSessions snapshots the current sessions map for scans keyed only by
// message id.
func (c *Core) openSessions() map[string]*session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*session, len(c.sessions))
	for id, s := range c.sessions {
		out[id] = s
	}
	return out
}

func (c *Core) emitView(s *session) {
	view := s.view.Clone()
	c.notifier.Notify(models.Event{
		Type:           models.EventMessagesLoaded,
		ConversationID: view.ConversationID,
		View:           &view,
	})
}

func (c *Core) emitError(conversationID string, err error) {
	c.notifier.Notify(models.Event{
		Type:           models.EventChatError,
		ConversationID: conversationID,
		Error:          err.Error(),
	})
}

// persist upserts into the message store; storage failures never override
// the in-memory view, which stays authoritative for the interaction.
func (c *Core) persist(ctx context.Context, msg models.Message) {
	if err := c.store.Upsert(ctx, msg); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("message store upsert failed")
	}
}

// invalidateLatest drops the conversation's cached latest page after a
// destructive edit so the next cache-then-network load does not resurface
// stale entries.
func (c *Core) invalidateLatest(ctx context.Context, conversationID string) {
	if err := c.cache.Invalidate(ctx, conversationID); err != nil {
		c.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("page cache invalidate failed")
	}
}

// LoadConversations fetches the user's conversation list, falling back to
// the local store when the backend is unreachable.
func (c *Core) LoadConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	summaries, err := c.transport.FetchConversations(ctx, userID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("conversation fetch failed, serving local store")
		summaries, err = c.convStore.List(ctx, userID)
		if err != nil {
			c.emitError("", err)
			return nil, err
		}
	} else {
		for _, summary := range summaries {
			if err := c.convStore.Upsert(ctx, userID, summary); err != nil {
				c.logger.Error().Err(err).Str("conversation_id", summary.ConversationID).Msg("conversation store upsert failed")
			}
		}
	}

	c.notifier.Notify(models.Event{
		Type:          models.EventConversationsLoaded,
		Conversations: summaries,
	})
	return summaries, nil
}

// UpdateTypingStatus mutates the transient typing map of the view.
func (c *Core) UpdateTypingStatus(conversationID, userID, displayName string, isTyping bool) error {
	s, err := c.session(conversationID)
	if err != nil {
		return err
	}
	return s.lane.do(func() {
		if isTyping {
			s.view.TypingUsers[userID] = displayName
		} else {
			delete(s.view.TypingUsers, userID)
		}
		c.emitView(s)
	})
}

// MarkMessageRead reports the receipt upstream and then marks the message
// read locally. The owning conversation is located by scanning the open
// views. The local status only moves once the backend accepted the
// receipt, so a transport failure leaves the view untouched.
func (c *Core) MarkMessageRead(ctx context.Context, messageID string) error {
	for conversationID, s := range c.openSessions() {
		var found bool
		if err := s.lane.do(func() { found = s.view.IndexOf(messageID) >= 0 }); err != nil {
			return err
		}
		if !found {
			continue
		}

		if err := c.transport.MarkRead(ctx, conversationID, []string{messageID}); err != nil {
			c.emitError(conversationID, err)
			return err
		}
		return s.lane.do(func() {
			if err := s.applyStatus(messageID, models.StatusRead); err != nil {
				return
			}
			if err := c.store.UpsertStatus(ctx, messageID, models.StatusRead); err != nil {
				c.logger.Error().Err(err).Str("message_id", messageID).Msg("status persist failed")
			}
			c.emitView(s)
		})
	}
	return ErrUnknownMessage
}

// MarkConversationRead marks the given messages read in one unit of work.
// Like MarkMessageRead, the backend receipt goes first and the local view
// follows.
func (c *Core) MarkConversationRead(ctx context.Context, conversationID string, messageIDs []string) error {
	s, ok := c.peekSession(conversationID)
	if !ok {
		return ErrUnknownMessage
	}
	if err := c.transport.MarkRead(ctx, conversationID, messageIDs); err != nil {
		c.emitError(conversationID, err)
		return err
	}
	return s.lane.do(func() {
		changed := false
		for _, id := range messageIDs {
			if err := s.applyStatus(id, models.StatusRead); err != nil {
				continue
			}
			changed = true
			if err := c.store.UpsertStatus(ctx, id, models.StatusRead); err != nil {
				c.logger.Error().Err(err).Str("message_id", id).Msg("status persist failed")
			}
		}
		if changed {
			c.emitView(s)
		}
	})
}

// DeleteMessage removes a message from the backend, the view and the
// store.
func (c *Core) DeleteMessage(ctx context.Context, messageID string) error {
	for _, s := range c.openSessions() {
		var found bool
		if err := s.lane.do(func() { found = s.view.IndexOf(messageID) >= 0 }); err != nil {
			return err
		}
		if !found {
			continue
		}

		if err := c.transport.DeleteMessage(ctx, messageID); err != nil {
			c.emitError(s.view.ConversationID, err)
			return err
		}
		return s.lane.do(func() {
			if idx := s.view.IndexOf(messageID); idx >= 0 {
				s.view.Messages = append(s.view.Messages[:idx], s.view.Messages[idx+1:]...)
			}
			if err := c.store.Remove(ctx, messageID); err != nil && err != storage.ErrMessageNotFound {
				c.logger.Error().Err(err).Str("message_id", messageID).Msg("store remove failed")
			}
			c.invalidateLatest(ctx, s.view.ConversationID)
			c.emitView(s)
		})
	}
	return ErrUnknownMessage
}

// EditMessage replaces a message's content, keeping its position and
// status untouched.
func (c *Core) EditMessage(ctx context.Context, messageID, newContent string) error {
	if newContent == "" {
		return ErrEmptyContent
	}
	for _, s := range c.openSessions() {
		var found bool
		if err := s.lane.do(func() { found = s.view.IndexOf(messageID) >= 0 }); err != nil {
			return err
		}
		if !found {
			continue
		}

		edited, err := c.transport.EditMessage(ctx, messageID, newContent)
		if err != nil {
			c.emitError(s.view.ConversationID, err)
			return err
		}
		return s.lane.do(func() {
			idx := s.view.IndexOf(messageID)
			if idx < 0 {
				return
			}
			s.view.Messages[idx].Content = edited.Content
			s.view.Messages[idx].Metadata = edited.Metadata
			c.persist(ctx, s.view.Messages[idx])
			c.invalidateLatest(ctx, s.view.ConversationID)
			msg := s.view.Messages[idx]
			c.notifier.Notify(models.Event{
				Type:           models.EventMessageEdited,
				ConversationID: s.view.ConversationID,
				Message:        &msg,
			})
			c.emitView(s)
		})
	}
	return ErrUnknownMessage
}

// CloseConversation tears down one conversation view. The view is
// discarded, not persisted.
func (c *Core) CloseConversation(conversationID string) {
	c.mu.Lock()
	s, ok := c.sessions[conversationID]
	if ok {
		delete(c.sessions, conversationID)
	}
	c.mu.Unlock()
	if ok {
		s.lane.close()
	}
}

// Close disposes the core and every conversation lane. Idempotent, and
// safe to call while feed deliveries are in flight: their lane submissions
// fail with ErrClosed instead of leaking.
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sessions := c.sessions
		c.sessions = make(map[string]*session)
		c.mu.Unlock()
		for _, s := range sessions {
			s.lane.close()
		}
	})
}

// View returns a consistent snapshot of one open conversation view.
func (c *Core) View(conversationID string) (models.ConversationView, bool) {
	s, ok := c.peekSession(conversationID)
	if !ok {
		return models.ConversationView{}, false
	}
	var view models.ConversationView
	if err := s.lane.do(func() { view = s.view.Clone() }); err != nil {
		return models.ConversationView{}, false
	}
	return view, true
}

// pendingCount reports outstanding sends across open conversations.
func (c *Core) pendingCount() int {
	total := 0
	for _, s := range c.openSessions() {
		total += s.pending.Len()
	}
	return total
}

func (c *Core) recordPendingGauge() {
	observability.SetPendingSends(float64(c.pendingCount()))
}
