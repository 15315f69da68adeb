package memory

import (
	"context"
	"sync"
)

// Cache implements ports.ImageCache in memory. Safe for concurrent
// use. It is the default cache when no persistent backend is
// configured; entries then live only as long as the process.
type Cache struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewCache creates an empty in-memory cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string]string)}
}

// GetAll returns a copy of every entry.
func (c *Cache) GetAll(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out, nil
}

// Get returns the entry for key, if present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok, nil
}

// Put stores the image under key.
func (c *Cache) Put(ctx context.Context, key, image string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = image
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]string)
	return nil
}

// Len reports the number of cached entries, for tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
