package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/delivery"
	"github.com/coreshift/switchyard/pkg/broker/dlq"
	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/broker/registry"
	"github.com/coreshift/switchyard/pkg/broker/router"
	"github.com/coreshift/switchyard/pkg/broker/storage"
	"github.com/coreshift/switchyard/pkg/lock"
)

func newBroker(t *testing.T) *Broker {
	t.Helper()
	queue := storage.NewMemQueue()
	deliverySvc := delivery.NewExactlyOnceService(
		delivery.NewService(dlq.New(queue), delivery.DefaultRetryConfig(), nil),
		lock.NewMemLock(),
		lock.NewMemIdempotencyStore(),
		0,
	)
	return New(
		registry.NewTopics(),
		registry.NewSubscriptions(),
		storage.NewMemPersistenceStore(),
		queue,
		router.New(),
		deliverySvc,
		nil,
	)
}

func TestBroker_PublishRequiresExistingTopic(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()

	_, _, err := b.PublishMessage(ctx, message.Message{TopicName: "orders"})
	if err == nil {
		t.Fatal("PublishMessage() to unknown topic, want error")
	}
}

func TestBroker_PublishGetAcknowledgeDelete(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()

	if err := b.CreateTopic(ctx, message.Topic{Name: "orders", Type: message.TopicQueue, PartitionCount: 1}); err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}
	if _, err := b.CreateSubscription(ctx, message.Subscription{TopicName: "orders", IsActive: true, ConsumerEndpoint: "worker-1"}); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	published, route, err := b.PublishMessage(ctx, message.Message{TopicName: "orders", Payload: []byte("hello")})
	if err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}
	if !route.Success {
		t.Errorf("PublishMessage() route.Success = false, want true: %+v", route)
	}
	if published.MessageID == uuid.Nil {
		t.Error("PublishMessage() did not assign a message id")
	}

	got, ok, err := b.GetMessage(ctx, published.MessageID)
	if err != nil || !ok {
		t.Fatalf("GetMessage() = %+v, %v, %v, want found", got, ok, err)
	}
	if got.Status != message.StatusPending {
		t.Errorf("GetMessage().Status = %v, want pending", got.Status)
	}

	byTopic, err := b.GetMessagesByTopic(ctx, "orders", 10)
	if err != nil || len(byTopic) != 1 {
		t.Fatalf("GetMessagesByTopic() = %v, %v, want 1 message", byTopic, err)
	}

	if err := b.AcknowledgeMessage(ctx, published.MessageID); err != nil {
		t.Fatalf("AcknowledgeMessage() error = %v", err)
	}
	acked, _, _ := b.GetMessage(ctx, published.MessageID)
	if acked.Status != message.StatusAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("GetMessage() after ack = %+v, want Status=acknowledged with AcknowledgedAt set", acked)
	}

	if err := b.DeleteMessage(ctx, published.MessageID); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if _, ok, _ := b.GetMessage(ctx, published.MessageID); ok {
		t.Error("GetMessage() after Delete(), want not found")
	}
}

func TestBroker_GetMessagesByTopicClampsLimit(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()
	_ = b.CreateTopic(ctx, message.Topic{Name: "orders", Type: message.TopicQueue, PartitionCount: 1})
	_, err := b.GetMessagesByTopic(ctx, "orders", maxGetByTopicLimit+500)
	if err != nil {
		t.Fatalf("GetMessagesByTopic() error = %v", err)
	}
}

func TestBroker_Deliver(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()
	_ = b.CreateTopic(ctx, message.Topic{Name: "orders", Type: message.TopicQueue, PartitionCount: 1})

	msg, _, err := b.PublishMessage(ctx, message.Message{TopicName: "orders"})
	if err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}

	result, err := b.Deliver(ctx, msg, func(context.Context, message.Message) (string, error) {
		return "worker-1", nil
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !result.IsSuccess || result.ConsumerID != "worker-1" {
		t.Errorf("Deliver() = %+v, want success with consumer worker-1", result)
	}
}

func TestBroker_TopicAndSubscriptionCRUD(t *testing.T) {
	b := newBroker(t)
	ctx := context.Background()

	if err := b.CreateTopic(ctx, message.Topic{Name: "billing", Type: message.TopicPubSub, PartitionCount: 2}); err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}
	if _, ok := b.GetTopic(ctx, "billing"); !ok {
		t.Fatal("GetTopic() not found after create")
	}
	if len(b.ListTopics(ctx)) != 1 {
		t.Fatalf("ListTopics() = %v, want 1", b.ListTopics(ctx))
	}

	sub, err := b.CreateSubscription(ctx, message.Subscription{TopicName: "billing"})
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if len(b.ListSubscriptions(ctx)) != 1 {
		t.Fatalf("ListSubscriptions() = %v, want 1", b.ListSubscriptions(ctx))
	}
	if err := b.DeleteSubscription(ctx, sub.SubscriptionID); err != nil {
		t.Fatalf("DeleteSubscription() error = %v", err)
	}
	if err := b.DeleteTopic(ctx, "billing"); err != nil {
		t.Fatalf("DeleteTopic() error = %v", err)
	}
}
