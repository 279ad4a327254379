// Package registry holds the broker's Topic and Subscription directories
// in-memory, mutex-guarded maps CRUD'd by name/id,
// following the same single-writer-many-readers shape as
// pkg/schema/registry.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// Topics is the topic directory. Topic.PartitionCount must never decrease
// and Topic.Type is immutable once created.
type Topics struct {
	mu   sync.RWMutex
	byID map[string]message.Topic
}

// NewTopics creates an empty topic directory.
func NewTopics() *Topics {
	return &Topics{byID: make(map[string]message.Topic)}
}

// Create registers a new topic. Duplicate names are rejected.
func (t *Topics) Create(_ context.Context, topic message.Topic) error {
	if topic.Name == "" {
		return fmt.Errorf("topic name must not be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[topic.Name]; exists {
		return fmt.Errorf("topic %q already exists", topic.Name)
	}
	t.byID[topic.Name] = topic
	return nil
}

// Get returns a topic by name.
func (t *Topics) Get(_ context.Context, name string) (message.Topic, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	topic, ok := t.byID[name]
	return topic, ok
}

// Update replaces a topic's mutable fields, rejecting a change to Type or a
// decrease in PartitionCount.
func (t *Topics) Update(_ context.Context, topic message.Topic) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.byID[topic.Name]
	if !ok {
		return fmt.Errorf("topic %q not found", topic.Name)
	}
	if existing.Type != topic.Type {
		return fmt.Errorf("topic %q: type is immutable", topic.Name)
	}
	if topic.PartitionCount < existing.PartitionCount {
		return fmt.Errorf("topic %q: partitionCount must never decrease", topic.Name)
	}
	t.byID[topic.Name] = topic
	return nil
}

// Delete removes a topic by name.
func (t *Topics) Delete(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[name]; !ok {
		return fmt.Errorf("topic %q not found", name)
	}
	delete(t.byID, name)
	return nil
}

// List returns every registered topic.
func (t *Topics) List(context.Context) []message.Topic {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]message.Topic, 0, len(t.byID))
	for _, topic := range t.byID {
		out = append(out, topic)
	}
	return out
}

// Subscriptions is the subscription directory, keyed by subscription id.
type Subscriptions struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]message.Subscription
}

// NewSubscriptions creates an empty subscription directory.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{byID: make(map[uuid.UUID]message.Subscription)}
}

// Create registers a subscription, assigning it a fresh id if unset.
func (s *Subscriptions) Create(_ context.Context, sub message.Subscription) (message.Subscription, error) {
	if sub.TopicName == "" {
		return message.Subscription{}, fmt.Errorf("subscription topicName must not be empty")
	}
	if sub.SubscriptionID == uuid.Nil {
		sub.SubscriptionID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sub.SubscriptionID] = sub
	return sub, nil
}

// Get returns a subscription by id.
func (s *Subscriptions) Get(_ context.Context, id uuid.UUID) (message.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID[id]
	return sub, ok
}

// Delete removes a subscription by id.
func (s *Subscriptions) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(s.byID, id)
	return nil
}

// ByTopic returns every subscription registered against topic, active or
// not — callers (the router) filter for IsActive themselves. The result is
// ordered by SubscriptionID rather than left in map-iteration order, since
// DirectStrategy and PriorityStrategy pick among these in input order and
// need that order to be deterministic run to run.
func (s *Subscriptions) ByTopic(_ context.Context, topic string) []message.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []message.Subscription
	for _, sub := range s.byID {
		if sub.TopicName == topic {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubscriptionID.String() < out[j].SubscriptionID.String()
	})
	return out
}

// List returns every registered subscription.
func (s *Subscriptions) List(context.Context) []message.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]message.Subscription, 0, len(s.byID))
	for _, sub := range s.byID {
		out = append(out, sub)
	}
	return out
}
