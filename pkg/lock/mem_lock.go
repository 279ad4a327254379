package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

func newToken() string { return uuid.New().String() }

// MemLock is an in-process DistributedLock backed by a mutex-guarded map,
// for single-process deployments and tests (the same role a hand-written
// handler tests give hand-written fakes instead of a real backend).
type MemLock struct {
	mu      sync.Mutex
	holders map[string]memEntry
}

type memEntry struct {
	token   string
	expires time.Time
}

// NewMemLock creates an empty MemLock.
func NewMemLock() *MemLock {
	return &MemLock{holders: make(map[string]memEntry)}
}

// pollInterval governs how often a blocked Acquire retries while waiting
// for a held key to free up.
const pollInterval = 2 * time.Millisecond

func (l *MemLock) Acquire(ctx context.Context, key string, timeout time.Duration) (Handle, error) {
	deadline := time.Now().Add(timeout)

	for {
		if handle, ok := l.tryAcquire(key, timeout); ok {
			return handle, nil
		}

		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *MemLock) tryAcquire(key string, ttl time.Duration) (Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.holders[key]; ok && e.expires.After(now) {
		return nil, false // still held
	}

	token := newToken()
	l.holders[key] = memEntry{token: token, expires: now.Add(ttl)}
	return &memHandle{lock: l, key: key, token: token}, true
}

func (l *MemLock) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.holders[key]; ok && e.token == token {
		delete(l.holders, key)
	}
}

type memHandle struct {
	lock  *MemLock
	key   string
	token string
}

func (h *memHandle) Release(_ context.Context) error {
	h.lock.release(h.key, h.token)
	return nil
}
