package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

func TestMemQueue_EnqueuePeekCount(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	m1 := message.Message{MessageID: uuid.New(), TopicName: "orders", Timestamp: time.Now()}
	m2 := message.Message{MessageID: uuid.New(), TopicName: "orders", Timestamp: time.Now()}

	if err := q.Enqueue(ctx, m1); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, m2); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	n, err := q.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v; want 2, nil", n, err)
	}

	got, err := q.Peek(ctx, 1)
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if len(got) != 1 || got[0].MessageID != m1.MessageID {
		t.Errorf("Peek(1) = %v, want first message m1", got)
	}
}

func TestMemQueue_RequeueUpdatesInPlace(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()
	id := uuid.New()

	m := message.Message{MessageID: id, TopicName: "orders", DeliveryAttempts: 2}
	if err := q.Enqueue(ctx, m); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	m.DeliveryAttempts = 3
	if err := q.Enqueue(ctx, m); err != nil {
		t.Fatalf("re-Enqueue() error = %v", err)
	}

	n, _ := q.Count(ctx)
	if n != 1 {
		t.Fatalf("Count() = %d, want 1 (requeue should not duplicate)", n)
	}

	got, _ := q.Peek(ctx, 10)
	if got[0].DeliveryAttempts != 3 {
		t.Errorf("DeliveryAttempts = %d, want 3", got[0].DeliveryAttempts)
	}
}

func TestMemQueue_Remove(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()
	id := uuid.New()

	_ = q.Enqueue(ctx, message.Message{MessageID: id})
	if err := q.Remove(ctx, id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	n, _ := q.Count(ctx)
	if n != 0 {
		t.Errorf("Count() after Remove() = %d, want 0", n)
	}
}

func TestMemPersistenceStore_RoundTrip(t *testing.T) {
	s := NewMemPersistenceStore()
	ctx := context.Background()
	id := uuid.New()

	msg := message.Message{MessageID: id, TopicName: "orders", Payload: []byte("hi")}
	if err := s.Store(ctx, msg); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, ok, err := s.Retrieve(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Retrieve() = %v, %v, %v", got, ok, err)
	}
	if string(got.Payload) != "hi" {
		t.Errorf("Payload = %q, want %q", got.Payload, "hi")
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, ok, _ = s.Retrieve(ctx, id)
	if ok {
		t.Error("Retrieve() after Delete() should return ok=false")
	}
}
