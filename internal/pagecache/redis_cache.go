package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-sync/internal/models"
)

var ErrCacheMiss = errors.New("cache miss")

// Page is a cached latest-page read for one conversation.
type Page struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// Cache stores the most recent page per conversation so the
// cache-then-network load mode can render without a loading indicator.
type Cache interface {
	Get(ctx context.Context, conversationID string, limit int) (Page, error)
	Set(ctx context.Context, conversationID string, limit int, page Page) error
	Invalidate(ctx context.Context, conversationID string) error
	Close() error
}

// RedisCache is a redis-backed Cache.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(addr, password string, dbIndex int, prefix string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *RedisCache) key(conversationID string, limit int) string {
	return fmt.Sprintf("%s:%s:latest:%d", c.prefix, conversationID, limit)
}

func (c *RedisCache) Get(ctx context.Context, conversationID string, limit int) (Page, error) {
	data, err := c.client.Get(ctx, c.key(conversationID, limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Page{}, ErrCacheMiss
		}
		return Page{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return Page{}, fmt.Errorf("failed to unmarshal cached page: %w", err)
	}
	return page, nil
}

func (c *RedisCache) Set(ctx context.Context, conversationID string, limit int, page Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	if err := c.client.Set(ctx, c.key(conversationID, limit), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Invalidate drops every cached page for the conversation.
func (c *RedisCache) Invalidate(ctx context.Context, conversationID string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("%s:%s:latest:*", c.prefix, conversationID), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
