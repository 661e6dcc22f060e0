package sync

import (
	"context"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/pagecache"
)

// LoadMessages is the cold load: fetch one page from the backend and
// replace the view wholesale.
func (c *Core) LoadMessages(ctx context.Context, conversationID string, page, limit int) error {
	if limit <= 0 {
		limit = c.opts.PageSize
	}
	s, err := c.session(conversationID)
	if err != nil {
		return err
	}

	claimed := false
	if err := s.lane.do(func() {
		claimed = s.beginFetch(fetchCold)
		if claimed {
			s.phase = PhaseLoading
		}
	}); err != nil {
		return err
	}
	if !claimed {
		observability.IncFetch("cold", "rejected")
		return ErrFetchInFlight
	}

	msgs, fetchErr := c.transport.FetchPage(ctx, conversationID, page, limit)

	err = s.lane.do(func() {
		defer s.endFetch()
		if fetchErr != nil {
			s.phase = PhaseError
			s.lastErr = fetchErr
			return
		}
		s.replaceMessages(msgs, len(msgs) >= limit)
		c.persistPage(ctx, conversationID, msgs, len(msgs) >= limit, page == 1, limit)
		c.emitView(s)
	})
	if err != nil {
		return err
	}
	if fetchErr != nil {
		observability.IncFetch("cold", "error")
		c.emitError(conversationID, fetchErr)
		return fetchErr
	}
	observability.IncFetch("cold", "ok")
	return nil
}

// LoadLatestMessages is the cache-then-network load: the cached page is
// shown immediately with no loading indicator, then the authoritative
// latest page replaces it only when it actually differs, avoiding a
// visible flicker when cache and network agree.
func (c *Core) LoadLatestMessages(ctx context.Context, conversationID string, limit int) error {
	if limit <= 0 {
		limit = c.opts.PageSize
	}
	s, err := c.session(conversationID)
	if err != nil {
		return err
	}

	claimed := false
	if err := s.lane.do(func() { claimed = s.beginFetch(fetchLatest) }); err != nil {
		return err
	}
	if !claimed {
		observability.IncFetch("latest", "rejected")
		return ErrFetchInFlight
	}

	cached, cacheErr := c.latest.Load(ctx, conversationID, limit, func(ctx context.Context) (pagecache.Page, error) {
		msgs, hasMore, err := c.store.GetPage(ctx, conversationID, "", limit)
		if err != nil {
			return pagecache.Page{}, err
		}
		return pagecache.Page{Messages: msgs, HasMore: hasMore}, nil
	})
	if cacheErr != nil {
		c.logger.Warn().Err(cacheErr).Str("conversation_id", conversationID).Msg("cached page read failed")
	}

	if cacheErr == nil && len(cached.Messages) > 0 {
		if err := s.lane.do(func() {
			s.replaceMessages(cached.Messages, cached.HasMore)
			c.emitView(s)
		}); err != nil {
			return err
		}
	}

	fresh, fetchErr := c.transport.FetchPage(ctx, conversationID, 1, limit)

	err = s.lane.do(func() {
		defer s.endFetch()
		if fetchErr != nil {
			// Keep showing the cached snapshot.
			if s.phase == PhaseInitial {
				s.phase = PhaseError
				s.lastErr = fetchErr
			}
			return
		}
		if !pagesDiffer(s.view.Messages, fresh) && s.phase == PhaseLoaded {
			return
		}
		s.replaceMessages(fresh, len(fresh) >= limit)
		c.persistPage(ctx, conversationID, fresh, len(fresh) >= limit, true, limit)
		c.emitView(s)
	})
	if err != nil {
		return err
	}
	if fetchErr != nil {
		observability.IncFetch("latest", "error")
		c.emitError(conversationID, fetchErr)
		return fetchErr
	}
	observability.IncFetch("latest", "ok")
	return nil
}

// LoadMoreMessages is the backward load: older messages are appended to
// the tail because the list is newest-first. Already-loaded messages are
// never discarded, even on failure.
func (c *Core) LoadMoreMessages(ctx context.Context, conversationID, oldestMessageID string, limit int) error {
	if limit <= 0 {
		limit = c.opts.PageSize
	}
	s, err := c.session(conversationID)
	if err != nil {
		return err
	}

	claimed := false
	if err := s.lane.do(func() {
		claimed = s.beginFetch(fetchMore)
		if claimed {
			s.view.IsLoadingMore = true
			c.emitView(s)
		}
	}); err != nil {
		return err
	}
	if !claimed {
		observability.IncFetch("more", "rejected")
		return ErrFetchInFlight
	}

	older, fetchErr := c.transport.FetchBefore(ctx, conversationID, oldestMessageID, limit)

	err = s.lane.do(func() {
		defer s.endFetch()
		s.view.IsLoadingMore = false
		if fetchErr != nil {
			c.emitView(s)
			return
		}
		s.appendOlder(older)
		s.view.HasMoreMessages = len(older) >= limit
		for _, m := range older {
			c.persist(ctx, m)
		}
		c.emitView(s)
	})
	if err != nil {
		return err
	}
	if fetchErr != nil {
		observability.IncFetch("more", "error")
		c.emitError(conversationID, fetchErr)
		return fetchErr
	}
	observability.IncFetch("more", "ok")
	return nil
}

// RefreshMessages re-fetches page one from the network only, bypassing the
// cache, preserving the typing map. A failed refresh keeps the last good
// snapshot.
func (c *Core) RefreshMessages(ctx context.Context, conversationID string) error {
	limit := c.opts.PageSize
	s, err := c.session(conversationID)
	if err != nil {
		return err
	}

	claimed := false
	if err := s.lane.do(func() {
		claimed = s.beginFetch(fetchRefresh)
		if claimed {
			s.view.IsRefreshing = true
			c.emitView(s)
		}
	}); err != nil {
		return err
	}
	if !claimed {
		observability.IncFetch("refresh", "rejected")
		return ErrFetchInFlight
	}

	fresh, fetchErr := c.transport.FetchPage(ctx, conversationID, 1, limit)

	err = s.lane.do(func() {
		defer s.endFetch()
		s.view.IsRefreshing = false
		if fetchErr != nil {
			c.emitView(s)
			return
		}
		s.replaceMessages(fresh, len(fresh) >= limit)
		c.persistPage(ctx, conversationID, fresh, len(fresh) >= limit, true, limit)
		c.emitView(s)
	})
	if err != nil {
		return err
	}
	if fetchErr != nil {
		observability.IncFetch("refresh", "error")
		c.emitError(conversationID, fetchErr)
		return fetchErr
	}
	observability.IncFetch("refresh", "ok")
	return nil
}

// pagesDiffer compares a fetched page to the current list the way the UI
// would notice: a different count or a different newest identity.
func pagesDiffer(current, fresh []models.Message) bool {
	if len(current) != len(fresh) {
		return true
	}
	if len(fresh) == 0 {
		return false
	}
	return current[0].ID != fresh[0].ID
}

// persistPage writes a fetched page through to the store and, for page
// one, the latest-page cache.
func (c *Core) persistPage(ctx context.Context, conversationID string, msgs []models.Message, hasMore bool, firstPage bool, limit int) {
	for _, m := range msgs {
		c.persist(ctx, m)
	}
	if !firstPage {
		return
	}
	if err := c.cache.Set(ctx, conversationID, limit, pagecache.Page{Messages: msgs, HasMore: hasMore}); err != nil {
		c.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("page cache set failed")
	}
}
