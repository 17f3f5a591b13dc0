package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotInitialised is returned by nil stores.
var ErrNotInitialised = errors.New("cache: store not initialised")

// Store is the short lived key/value cache shared by the rate limiter and the
// identity lookup memo. Values are opaque bytes.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
