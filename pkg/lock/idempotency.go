package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore implements IdempotencyStore on Redis. Keys are
// stored with a TTL so the store does not grow without bound; processed
// messages older than ttl become eligible for redelivery again, which is an
// accepted tradeoff for a non-durable dedup window (see DESIGN.md notes
// the broker is explicitly not a durable log).
type RedisIdempotencyStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a RedisIdempotencyStore.
func NewRedisIdempotencyStore(rdb *redis.Client, keyPrefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, prefix: keyPrefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) HasBeenProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("checking idempotency key %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisIdempotencyStore) MarkAsProcessed(ctx context.Context, key, messageID string) error {
	// SET with NX keeps a second call with the same key idempotent (single-writer
	// shared-resource policy): the first writer's messageID wins.
	if err := s.rdb.SetNX(ctx, s.prefix+key, messageID, s.ttl).Err(); err != nil {
		return fmt.Errorf("marking idempotency key %q processed: %w", key, err)
	}
	return nil
}

// MemIdempotencyStore is an in-process IdempotencyStore for tests and
// single-process deployments.
type MemIdempotencyStore struct {
	mu        sync.Mutex
	processed map[string]string
}

// NewMemIdempotencyStore creates an empty MemIdempotencyStore.
func NewMemIdempotencyStore() *MemIdempotencyStore {
	return &MemIdempotencyStore{processed: make(map[string]string)}
}

func (s *MemIdempotencyStore) HasBeenProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[key]
	return ok, nil
}

func (s *MemIdempotencyStore) MarkAsProcessed(_ context.Context, key, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[key]; !ok {
		s.processed[key] = messageID
	}
	return nil
}
