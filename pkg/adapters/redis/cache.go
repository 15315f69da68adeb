package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Cache implements ports.ImageCache using a single Redis hash, so one
// shared backend serves every player of the same deployment: an image
// generated for one session is a cache hit for all.
type Cache struct {
	client *backend.Client
	key    string
	ttl    time.Duration
}

type Option func(*Cache)

// WithKey sets the hash key the images live under.
func WithKey(key string) Option {
	return func(c *Cache) {
		c.key = key
	}
}

// WithTTL sets the expiration for the image set, refreshed on every
// write. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// New creates a new Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	cache := &Cache{
		client: client,
		key:    "fabula:images",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// GetAll returns every cached image keyed by subject/node.
func (c *Cache) GetAll(ctx context.Context) (map[string]string, error) {
	all, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load image cache: %w", err)
	}
	return all, nil
}

// Get returns the image for key, if present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.HGet(ctx, c.key, key).Result()
	if err != nil {
		if err == backend.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, true, nil
}

// Put stores the image under key and refreshes the TTL.
func (c *Cache) Put(ctx context.Context, key, image string) error {
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, c.key, key, image)
	if c.ttl > 0 {
		pipe.Expire(ctx, c.key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Clear drops the whole image set.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to clear redis cache: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
