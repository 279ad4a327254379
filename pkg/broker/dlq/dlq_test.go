package dlq

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/broker/storage"
)

func TestTopicName(t *testing.T) {
	got, err := TopicName("orders")
	if err != nil || got != "orders.dlq" {
		t.Fatalf("TopicName() = %q, %v; want orders.dlq, nil", got, err)
	}

	if _, err := TopicName(""); err == nil {
		t.Error("TopicName(\"\") error = nil, want error")
	}
}

func TestMoveToDLQ_SetsHeadersAndStatus(t *testing.T) {
	q := storage.NewMemQueue()
	svc := New(q)
	ctx := context.Background()

	msg := message.Message{
		MessageID:        uuid.New(),
		TopicName:        "orders",
		DeliveryAttempts: 3,
		Headers:          map[string]string{"trace-id": "abc"},
	}

	moved, err := svc.MoveToDLQ(ctx, msg, "")
	if err != nil || !moved {
		t.Fatalf("MoveToDLQ() = %v, %v; want true, nil", moved, err)
	}

	entries, _ := q.Peek(ctx, 0)
	if len(entries) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(entries))
	}
	got := entries[0]

	if got.TopicName != "orders.dlq" {
		t.Errorf("TopicName = %q, want orders.dlq", got.TopicName)
	}
	if got.Status != message.StatusFailed {
		t.Errorf("Status = %v, want Failed", got.Status)
	}
	if got.AckDeadline != nil {
		t.Error("AckDeadline should be cleared")
	}
	if got.Headers[headerOriginalTopic] != "orders" {
		t.Errorf("X-Original-Topic = %q, want orders", got.Headers[headerOriginalTopic])
	}
	if got.Headers[headerReason] != defaultReason {
		t.Errorf("X-DLQ-Reason = %q, want %q (blank reason defaults)", got.Headers[headerReason], defaultReason)
	}
	if got.Headers[headerDeliveryAttempts] != "3" {
		t.Errorf("X-Delivery-Attempts = %q, want 3", got.Headers[headerDeliveryAttempts])
	}
	if got.Headers["trace-id"] != "abc" {
		t.Error("pre-existing headers should be preserved")
	}
}

func TestReplayFromDLQ_RestoresOriginalTopicAndResetsAttempts(t *testing.T) {
	q := storage.NewMemQueue()
	svc := New(q)
	ctx := context.Background()
	id := uuid.New()

	_, _ = svc.MoveToDLQ(ctx, message.Message{MessageID: id, TopicName: "orders", DeliveryAttempts: 5}, "boom")

	ok, err := svc.ReplayFromDLQ(ctx, id)
	if err != nil || !ok {
		t.Fatalf("ReplayFromDLQ() = %v, %v; want true, nil", ok, err)
	}

	entries, _ := q.Peek(ctx, 0)
	got := entries[0]
	if got.TopicName != "orders" {
		t.Errorf("TopicName = %q, want orders", got.TopicName)
	}
	if got.Status != message.StatusPending {
		t.Errorf("Status = %v, want Pending", got.Status)
	}
	if got.DeliveryAttempts != 0 {
		t.Errorf("DeliveryAttempts = %d, want 0", got.DeliveryAttempts)
	}
	if _, ok := got.Headers[headerOriginalTopic]; ok {
		t.Error("X-Original-Topic header should be removed after replay")
	}
	if _, ok := got.Headers[headerReason]; ok {
		t.Error("X-DLQ-Reason header should be removed after replay")
	}
}

func TestReplayFromDLQ_NotFound(t *testing.T) {
	q := storage.NewMemQueue()
	svc := New(q)

	ok, err := svc.ReplayFromDLQ(context.Background(), uuid.New())
	if err != nil || ok {
		t.Fatalf("ReplayFromDLQ() for unknown id = %v, %v; want false, nil", ok, err)
	}
}
