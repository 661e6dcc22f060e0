package pagecache

import "context"

// NoopCache satisfies Cache when redis is disabled; every read misses.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, conversationID string, limit int) (Page, error) {
	return Page{}, ErrCacheMiss
}

func (NoopCache) Set(ctx context.Context, conversationID string, limit int, page Page) error {
	return nil
}

func (NoopCache) Invalidate(ctx context.Context, conversationID string) error {
	return nil
}

func (NoopCache) Close() error {
	return nil
}
