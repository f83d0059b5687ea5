// Package counters provides the expiring counter store behind unique-view
// dedup and ingestion rate limiting. The store is an injected capability so
// tests run against the in-process map and production can substitute a
// shared external store; expiry is handled by a scheduled sweep, not by
// ambient per-entry timers.
package counters

import (
	"context"
	"time"
)

// Store is a keyed counter with per-key expiry.
type Store interface {
	// Increment adds 1 to key and returns the new value. A key seen for the
	// first time (or after expiry) starts at 1 and lives for ttl.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current value, or 0 if the key is absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// Expire drops the key immediately.
	Expire(ctx context.Context, key string) error
}
