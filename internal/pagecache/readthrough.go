package pagecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader produces a page from the backing store on a cache miss.
type Loader func(ctx context.Context) (Page, error)

// ReadThrough wraps a Cache with singleflight so duplicate concurrent
// reads of the same conversation page collapse into one store hit.
type ReadThrough struct {
	cache  Cache
	sf     singleflight.Group
	logger zerolog.Logger
}

// NewReadThrough constructs a ReadThrough over the cache.
func NewReadThrough(cache Cache, logger zerolog.Logger) *ReadThrough {
	return &ReadThrough{cache: cache, logger: logger}
}

// Load returns the cached page for the conversation, consulting the loader
// on a miss and writing the result back asynchronously. Cache failures are
// logged and degrade to the loader; they are never surfaced as page errors.
func (r *ReadThrough) Load(ctx context.Context, conversationID string, limit int, load Loader) (Page, error) {
	key := fmt.Sprintf("%s:%d", conversationID, limit)
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		cached, err := r.cache.Get(ctx, conversationID, limit)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("page cache get error")
		}

		page, err := load(ctx)
		if err != nil {
			return Page{}, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.cache.Set(setCtx, conversationID, limit, page); err != nil {
				r.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("page cache set error")
			}
		}()
		return page, nil
	})
	if err != nil {
		return Page{}, err
	}
	return result.(Page), nil
}
