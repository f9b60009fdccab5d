package ratelimit

import (
	"context"
	"time"
)

// Store is the persistence boundary for counters.
// Implementations need no cross-request atomicity; the limiter tolerates a small overshoot under bursts.
type Store interface {
	// Get returns the counter for key. ok is false when no counter exists (or it expired).
	Get(ctx context.Context, key string) (c Counter, ok bool, err error)
	// Put stores the counter. ttl is a hint; stores may drop the counter after it.
	Put(ctx context.Context, key string, c Counter, ttl time.Duration) error
}
