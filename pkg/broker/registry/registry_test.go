package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

func TestTopics_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	topics := NewTopics()
	topic := message.Topic{Name: "orders", Type: message.TopicQueue, PartitionCount: 1}

	if err := topics.Create(ctx, topic); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := topics.Create(ctx, topic); err == nil {
		t.Fatal("Create() duplicate error = nil, want error")
	}

	got, ok := topics.Get(ctx, "orders")
	if !ok || got.Name != "orders" {
		t.Errorf("Get() = %+v, %v, want orders topic", got, ok)
	}

	if err := topics.Delete(ctx, "orders"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := topics.Get(ctx, "orders"); ok {
		t.Error("Get() after Delete(), want ok=false")
	}
}

func TestTopics_UpdateRejectsTypeChangeAndPartitionDecrease(t *testing.T) {
	ctx := context.Background()
	topics := NewTopics()
	topic := message.Topic{Name: "orders", Type: message.TopicQueue, PartitionCount: 4}
	_ = topics.Create(ctx, topic)

	changedType := topic
	changedType.Type = message.TopicPubSub
	if err := topics.Update(ctx, changedType); err == nil {
		t.Error("Update() changing type, want error")
	}

	fewerPartitions := topic
	fewerPartitions.PartitionCount = 2
	if err := topics.Update(ctx, fewerPartitions); err == nil {
		t.Error("Update() decreasing partitionCount, want error")
	}

	morePartitions := topic
	morePartitions.PartitionCount = 8
	if err := topics.Update(ctx, morePartitions); err != nil {
		t.Errorf("Update() increasing partitionCount, error = %v, want nil", err)
	}
}

func TestSubscriptions_CreateAndByTopic(t *testing.T) {
	ctx := context.Background()
	subs := NewSubscriptions()

	sub1, err := subs.Create(ctx, message.Subscription{TopicName: "orders", IsActive: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err = subs.Create(ctx, message.Subscription{TopicName: "billing", IsActive: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	byTopic := subs.ByTopic(ctx, "orders")
	if len(byTopic) != 1 || byTopic[0].SubscriptionID != sub1.SubscriptionID {
		t.Errorf("ByTopic() = %+v, want just sub1", byTopic)
	}
}

func TestSubscriptions_ByTopic_StableOrder(t *testing.T) {
	ctx := context.Background()
	subs := NewSubscriptions()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		sub, err := subs.Create(ctx, message.Subscription{TopicName: "orders", IsActive: true})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, sub.SubscriptionID)
	}

	first := subs.ByTopic(ctx, "orders")
	for i := 0; i < 10; i++ {
		again := subs.ByTopic(ctx, "orders")
		for j := range first {
			if first[j].SubscriptionID != again[j].SubscriptionID {
				t.Fatalf("ByTopic() order is unstable across calls: %v vs %v", first, again)
			}
		}
	}

	for i := 1; i < len(first); i++ {
		if first[i-1].SubscriptionID.String() >= first[i].SubscriptionID.String() {
			t.Errorf("ByTopic() = %v, want ascending SubscriptionID order", first)
		}
	}
	if len(first) != len(ids) {
		t.Fatalf("ByTopic() returned %d subscriptions, want %d", len(first), len(ids))
	}
}

func TestSubscriptions_DeleteNotFound(t *testing.T) {
	subs := NewSubscriptions()
	sub, _ := subs.Create(context.Background(), message.Subscription{TopicName: "orders"})
	if err := subs.Delete(context.Background(), sub.SubscriptionID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := subs.Delete(context.Background(), sub.SubscriptionID); err == nil {
		t.Fatal("Delete() on already-deleted id, want error")
	}
}
