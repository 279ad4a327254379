package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/lock"
)

const idempotencyKeyHeader = "Idempotency-Key"

// defaultLockTimeout matches the documented default lock-acquisition timeout.
const defaultLockTimeout = 30 * time.Second

// ExactlyOnceService wraps Service with a distributed lock and idempotency
// store so deliverFn runs at most once per idempotency key, even across
// concurrent callers.
type ExactlyOnceService struct {
	delivery    *Service
	lock        lock.DistributedLock
	idempotency lock.IdempotencyStore
	lockTimeout time.Duration
}

// NewExactlyOnceService builds an ExactlyOnceService. lockTimeout <= 0 uses
// the documented 30s default.
func NewExactlyOnceService(delivery *Service, distLock lock.DistributedLock, idempotency lock.IdempotencyStore, lockTimeout time.Duration) *ExactlyOnceService {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &ExactlyOnceService{
		delivery:    delivery,
		lock:        distLock,
		idempotency: idempotency,
		lockTimeout: lockTimeout,
	}
}

// Deliver acquires a lock keyed by the message's idempotency key, checks
// whether that key has already been processed, and only then calls
// deliverFn. The lock is released exactly once on every path (success,
// failure, duplicate, or cancellation); markAsProcessed runs only after a
// successful delivery and must itself succeed for the call to report
// success.
func (s *ExactlyOnceService) Deliver(ctx context.Context, msg message.Message, deliverFn DeliverFunc) (Result, error) {
	key := idempotencyKey(msg)

	handle, err := s.lock.Acquire(ctx, key, s.lockTimeout)
	if err != nil {
		return Result{}, fmt.Errorf("acquiring idempotency lock for %s: %w", key, err)
	}
	if handle == nil {
		return Result{IsSuccess: false, ErrorMessage: "Could not acquire lock"}, nil
	}
	defer handle.Release(ctx)

	processed, err := s.idempotency.HasBeenProcessed(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("checking idempotency state for %s: %w", key, err)
	}
	if processed {
		return Result{IsSuccess: false, IsDuplicate: true}, nil
	}

	result, err := s.delivery.DeliverWithRetry(ctx, msg, deliverFn)
	if err != nil {
		return Result{}, err
	}
	if !result.IsSuccess {
		return result, nil
	}

	if err := s.idempotency.MarkAsProcessed(ctx, key, msg.MessageID.String()); err != nil {
		return Result{IsSuccess: false, ErrorMessage: fmt.Sprintf("delivered but failed to mark processed: %v", err)}, nil
	}
	return result, nil
}

func idempotencyKey(msg message.Message) string {
	if key := msg.Headers[idempotencyKeyHeader]; key != "" {
		return key
	}
	return msg.MessageID.String()
}
