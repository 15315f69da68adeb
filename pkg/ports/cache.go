package ports

import "context"

// ImageCache is the persistent key→image store. The engine treats it
// as authoritative for "already generated" content; it is an
// optimization, not a correctness requirement, so Put failures are
// logged and ignored. The engine namespaces keys by subject before
// they reach the cache.
type ImageCache interface {
	// GetAll bulk-loads every cached entry, used once at session start.
	GetAll(ctx context.Context) (map[string]string, error)

	// Get returns the cached image for key, if present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores the image under key. Best effort.
	Put(ctx context.Context, key, image string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
