// Package service composes the broker's storage, routing, and delivery
// pieces into the external messaging surface
// names: PublishMessage, GetMessage, GetMessagesByTopic, AcknowledgeMessage,
// DeleteMessage.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/delivery"
	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/broker/registry"
	"github.com/coreshift/switchyard/pkg/broker/router"
	"github.com/coreshift/switchyard/pkg/broker/storage"
)

// maxGetByTopicLimit caps GetMessagesByTopic
// ("GetMessagesByTopic(topic, limit<=1000)").
const maxGetByTopicLimit = 1000

// Broker is the composed messaging facade. It owns no transport of its own;
// an HTTP Handler (or any other front door) calls these methods directly.
type Broker struct {
	topics   *registry.Topics
	subs     *registry.Subscriptions
	store    storage.PersistenceStore
	queue    storage.Queue
	router   *router.Router
	delivery *delivery.ExactlyOnceService
	logger   *slog.Logger
	now      func() time.Time
}

// New composes a Broker from its dependencies.
func New(topics *registry.Topics, subs *registry.Subscriptions, store storage.PersistenceStore, queue storage.Queue, rtr *router.Router, deliverySvc *delivery.ExactlyOnceService, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		topics:   topics,
		subs:     subs,
		store:    store,
		queue:    queue,
		router:   rtr,
		delivery: deliverySvc,
		logger:   logger,
		now:      time.Now,
	}
}

// PublishMessage persists msg, enqueues it, and routes it to active
// subscriptions. The message id is assigned if unset.
func (b *Broker) PublishMessage(ctx context.Context, msg message.Message) (message.Message, router.RouteResult, error) {
	if msg.MessageID == uuid.Nil {
		msg.MessageID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = b.now()
	}
	if msg.Status == "" {
		msg.Status = message.StatusPending
	}

	topic, ok := b.topics.Get(ctx, msg.TopicName)
	if !ok {
		return message.Message{}, router.RouteResult{}, fmt.Errorf("topic %q not found", msg.TopicName)
	}

	if err := b.store.Store(ctx, msg); err != nil {
		return message.Message{}, router.RouteResult{}, fmt.Errorf("persisting message: %w", err)
	}
	if err := b.queue.Enqueue(ctx, msg); err != nil {
		return message.Message{}, router.RouteResult{}, fmt.Errorf("enqueueing message: %w", err)
	}

	result := b.router.Route(ctx, msg, topic, b.subs.ByTopic(ctx, msg.TopicName))
	if !result.Success {
		b.logger.Warn("no consumers routed for published message", "message_id", msg.MessageID, "topic", msg.TopicName, "reason", result.Reason)
	}
	return msg, result, nil
}

// GetMessage retrieves a message by id from the system of record.
func (b *Broker) GetMessage(ctx context.Context, id uuid.UUID) (message.Message, bool, error) {
	return b.store.Retrieve(ctx, id)
}

// GetMessagesByTopic retrieves up to limit messages for a topic, clamped to
// maxGetByTopicLimit.
func (b *Broker) GetMessagesByTopic(ctx context.Context, topic string, limit int) ([]message.Message, error) {
	if limit <= 0 || limit > maxGetByTopicLimit {
		limit = maxGetByTopicLimit
	}
	return b.store.GetByTopic(ctx, topic, limit)
}

// AcknowledgeMessage marks a message acknowledged and removes it from the
// live queue, if the queue implementation supports removal.
func (b *Broker) AcknowledgeMessage(ctx context.Context, id uuid.UUID) error {
	msg, ok, err := b.store.Retrieve(ctx, id)
	if err != nil {
		return fmt.Errorf("retrieving message %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("message %s not found", id)
	}

	now := b.now()
	msg.Status = message.StatusAcknowledged
	msg.AcknowledgedAt = &now
	msg.AckDeadline = nil
	if err := b.store.Store(ctx, msg); err != nil {
		return fmt.Errorf("persisting acknowledged message: %w", err)
	}

	if remover, ok := b.queue.(storage.Remover); ok {
		if err := remover.Remove(ctx, id); err != nil {
			b.logger.Warn("failed to remove acknowledged message from queue", "message_id", id, "error", err)
		}
	}
	return nil
}

// DeleteMessage removes a message from the system of record.
func (b *Broker) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return b.store.Delete(ctx, id)
}

// CreateTopic registers a new topic.
func (b *Broker) CreateTopic(ctx context.Context, topic message.Topic) error {
	return b.topics.Create(ctx, topic)
}

// GetTopic returns a topic by name.
func (b *Broker) GetTopic(ctx context.Context, name string) (message.Topic, bool) {
	return b.topics.Get(ctx, name)
}

// ListTopics returns every registered topic.
func (b *Broker) ListTopics(ctx context.Context) []message.Topic {
	return b.topics.List(ctx)
}

// DeleteTopic removes a topic by name.
func (b *Broker) DeleteTopic(ctx context.Context, name string) error {
	return b.topics.Delete(ctx, name)
}

// CreateSubscription registers a consumer against a topic.
func (b *Broker) CreateSubscription(ctx context.Context, sub message.Subscription) (message.Subscription, error) {
	return b.subs.Create(ctx, sub)
}

// ListSubscriptions returns every registered subscription.
func (b *Broker) ListSubscriptions(ctx context.Context) []message.Subscription {
	return b.subs.List(ctx)
}

// DeleteSubscription removes a subscription by id.
func (b *Broker) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return b.subs.Delete(ctx, id)
}

// Deliver hands a routed message to deliverFn through the broker's
// exactly-once delivery pipeline (retry, backoff, DLQ, idempotency).
func (b *Broker) Deliver(ctx context.Context, msg message.Message, deliverFn delivery.DeliverFunc) (delivery.Result, error) {
	return b.delivery.Deliver(ctx, msg, deliverFn)
}
