// Package lock defines the mutual-exclusion and deduplication primitives
// (C2) that ExactlyOnceDelivery builds on: a TTL-scoped DistributedLock
// keyed by idempotency key, and an IdempotencyStore recording which keys
// have already been processed.
package lock

import (
	"context"
	"time"
)

// Handle represents a held lock. Release must be safe to call more than
// once; only the first call has effect.
type Handle interface {
	Release(ctx context.Context) error
}

// DistributedLock provides mutual exclusion by key with a TTL, so a holder
// that crashes or is killed does not wedge the key forever.
type DistributedLock interface {
	// Acquire blocks (subject to ctx) until the lock is obtained or timeout
	// elapses. It returns (nil, nil) on timeout — the caller treats a
	// nil handle as "could not acquire lock", not an error.
	Acquire(ctx context.Context, key string, timeout time.Duration) (Handle, error)
}

// IdempotencyStore tracks which idempotency keys have already had their
// associated message committed, and the message id that committed them.
type IdempotencyStore interface {
	HasBeenProcessed(ctx context.Context, key string) (bool, error)
	MarkAsProcessed(ctx context.Context, key, messageID string) error
}
