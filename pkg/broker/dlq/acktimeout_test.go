package dlq

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/broker/storage"
)

func TestAckTimeoutMonitor_RequeuesExpiredMessages(t *testing.T) {
	q := storage.NewMemQueue()
	ctx := context.Background()

	expired := time.Now().Add(-time.Minute)
	id := uuid.New()
	_ = q.Enqueue(ctx, message.Message{MessageID: id, TopicName: "orders", AckDeadline: &expired, DeliveryAttempts: 1})

	notExpiredDeadline := time.Now().Add(time.Hour)
	untouchedID := uuid.New()
	_ = q.Enqueue(ctx, message.Message{MessageID: untouchedID, TopicName: "orders", AckDeadline: &notExpiredDeadline})

	noDeadlineID := uuid.New()
	_ = q.Enqueue(ctx, message.Message{MessageID: noDeadlineID, TopicName: "orders"})

	monitor := NewAckTimeoutMonitor(q, 30*time.Second, time.Hour, 0, nil)
	if err := monitor.tick(ctx); err != nil {
		t.Fatalf("tick() error = %v", err)
	}

	entries, _ := q.Peek(ctx, 0)
	byID := make(map[uuid.UUID]message.Message, len(entries))
	for _, e := range entries {
		byID[e.MessageID] = e
	}

	requeued := byID[id]
	if requeued.DeliveryAttempts != 2 {
		t.Errorf("DeliveryAttempts = %d, want 2", requeued.DeliveryAttempts)
	}
	if requeued.AckDeadline == nil || !requeued.AckDeadline.After(time.Now()) {
		t.Error("AckDeadline should be pushed into the future")
	}

	if byID[untouchedID].DeliveryAttempts != 0 {
		t.Error("message with a future ack deadline should be untouched")
	}
	if byID[noDeadlineID].DeliveryAttempts != 0 {
		t.Error("message with no ack deadline should be untouched")
	}
}
