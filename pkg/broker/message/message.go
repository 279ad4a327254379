// Package message holds the broker's wire-level data types: Topic, Message,
// and Subscription.
package message

import (
	"time"

	"github.com/google/uuid"
)

// TopicType selects queue (load-balanced, single consumer per message) vs.
// pub/sub (every active subscription receives every message) semantics.
type TopicType string

const (
	TopicQueue  TopicType = "queue"
	TopicPubSub TopicType = "pubsub"
)

// DeliveryGuarantee describes the at-most/at-least/exactly-once contract a
// topic promises its consumers.
type DeliveryGuarantee string

const (
	AtMostOnce  DeliveryGuarantee = "at_most_once"
	AtLeastOnce DeliveryGuarantee = "at_least_once"
	ExactlyOnce DeliveryGuarantee = "exactly_once"
)

// Topic is a named destination messages are published to.
type Topic struct {
	Name              string            `json:"name" validate:"required"`
	Type              TopicType         `json:"type" validate:"required"`
	SchemaID          string            `json:"schema_id,omitempty"`
	DeliveryGuarantee DeliveryGuarantee `json:"delivery_guarantee"`
	RetentionPeriod   time.Duration     `json:"retention_period"`
	PartitionCount    int               `json:"partition_count" validate:"min=1,max=16"`
	ReplicationFactor int               `json:"replication_factor"`
	Config            map[string]string `json:"config,omitempty"`
}

// RoutingStrategyName returns the explicit routing strategy configured on
// the topic, or "" if unset.
func (t Topic) RoutingStrategyName() string {
	if t.Config == nil {
		return ""
	}
	return t.Config["routingStrategy"]
}

// Status is a message's position in the delivery lifecycle.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDelivered    Status = "delivered"
	StatusAcknowledged Status = "acknowledged"
	StatusFailed       Status = "failed"
)

// Message is a single unit of data flowing through a topic.
type Message struct {
	MessageID        uuid.UUID         `json:"message_id"`
	TopicName        string            `json:"topic_name" validate:"required"`
	Payload          []byte            `json:"payload"`
	SchemaVersion    string            `json:"schema_version,omitempty"`
	Priority         int               `json:"priority" validate:"min=0,max=9"`
	DeliveryAttempts int               `json:"delivery_attempts"`
	Timestamp        time.Time         `json:"timestamp"`
	Status           Status            `json:"status"`
	AckDeadline      *time.Time        `json:"ack_deadline,omitempty"`
	AcknowledgedAt   *time.Time        `json:"acknowledged_at,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
}

// Clone returns a deep-enough copy so callers can mutate Headers/AckDeadline
// on a forwarded copy without mutating the caller's original (the delivery
// and DLQ paths each need their own view of a message in flight).
func (m Message) Clone() Message {
	c := m
	if m.Headers != nil {
		c.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			c.Headers[k] = v
		}
	}
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	if m.AckDeadline != nil {
		d := *m.AckDeadline
		c.AckDeadline = &d
	}
	if m.AcknowledgedAt != nil {
		d := *m.AcknowledgedAt
		c.AcknowledgedAt = &d
	}
	return c
}

// SubscriptionType selects whether the broker pushes to ConsumerEndpoint or
// the consumer pulls.
type SubscriptionType string

const (
	Push SubscriptionType = "push"
	Pull SubscriptionType = "pull"
)

// Subscription is a consumer's registration against a topic.
type Subscription struct {
	SubscriptionID   uuid.UUID         `json:"subscription_id"`
	TopicName        string            `json:"topic_name" validate:"required"`
	ConsumerGroup    string            `json:"consumer_group"`
	ConsumerEndpoint string            `json:"consumer_endpoint"`
	Type             SubscriptionType  `json:"type"`
	IsActive         bool              `json:"is_active"`
	Filter           map[string]string `json:"filter,omitempty"` // headerMatches
	MaxRetries       int               `json:"max_retries"`
	AckTimeout       time.Duration     `json:"ack_timeout"`
}

// ID returns a stable identifier for routing results: ConsumerEndpoint if
// set, otherwise the subscription id.
func (s Subscription) ID() string {
	if s.ConsumerEndpoint != "" {
		return s.ConsumerEndpoint
	}
	return s.SubscriptionID.String()
}
