package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// MemQueue is an in-process, mutex-guarded ordered Queue. Re-enqueuing a
// message id that is already present (the ack-timeout requeue path) updates
// it in place rather than growing the queue or losing its position.
type MemQueue struct {
	mu    sync.Mutex
	order []uuid.UUID
	byID  map[uuid.UUID]message.Message
}

// NewMemQueue creates an empty MemQueue.
func NewMemQueue() *MemQueue {
	return &MemQueue{byID: make(map[uuid.UUID]message.Message)}
}

func (q *MemQueue) Enqueue(_ context.Context, msg message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byID[msg.MessageID]; !exists {
		q.order = append(q.order, msg.MessageID)
	}
	q.byID[msg.MessageID] = msg
	return nil
}

func (q *MemQueue) Peek(_ context.Context, limit int) ([]message.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.order) {
		limit = len(q.order)
	}

	out := make([]message.Message, 0, limit)
	for _, id := range q.order[:limit] {
		out = append(out, q.byID[id])
	}
	return out, nil
}

func (q *MemQueue) Count(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order), nil
}

// Remove drops a message from the queue entirely (used once a message is
// delivered/acknowledged/moved to a DLQ and should no longer be peeked).
func (q *MemQueue) Remove(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[id]; !ok {
		return nil
	}
	delete(q.byID, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return nil
}
