// Package dlq implements dead-letter topic naming, message handoff, and
// replay (C10).
package dlq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/broker/storage"
)

const (
	suffix = ".dlq"

	headerOriginalTopic    = "X-Original-Topic"
	headerReason           = "X-DLQ-Reason"
	headerDeliveryAttempts = "X-Delivery-Attempts"
	headerTimestamp        = "X-DLQ-Timestamp"

	defaultReason = "Unknown error"
)

// TopicName returns the dead-letter topic for an original topic name.
// Returns an error for a blank input rather than silently producing ".dlq".
func TopicName(original string) (string, error) {
	if original == "" {
		return "", fmt.Errorf("original topic name must not be empty")
	}
	return original + suffix, nil
}

// Service moves messages onto their dead-letter topic and replays them back.
type Service struct {
	queue storage.Queue
}

// New creates a Service backed by queue.
func New(queue storage.Queue) *Service {
	return &Service{queue: queue}
}

// MoveToDLQ copies msg onto its dead-letter topic, marking it Failed and
// stamping the X-* headers callers rely on for diagnosis and replay. A blank
// reason is recorded as "Unknown error". Returns false (no error) if the
// enqueue itself fails, using a "moved bool, err error"
// pattern for best-effort side channels.
func (s *Service) MoveToDLQ(ctx context.Context, msg message.Message, reason string) (bool, error) {
	dlqTopic, err := TopicName(msg.TopicName)
	if err != nil {
		return false, err
	}
	if reason == "" {
		reason = defaultReason
	}

	moved := msg.Clone()
	moved.TopicName = dlqTopic
	moved.Status = message.StatusFailed
	moved.AckDeadline = nil

	if moved.Headers == nil {
		moved.Headers = make(map[string]string)
	}
	moved.Headers[headerOriginalTopic] = msg.TopicName
	moved.Headers[headerReason] = reason
	moved.Headers[headerDeliveryAttempts] = strconv.Itoa(moved.DeliveryAttempts)
	moved.Headers[headerTimestamp] = time.Now().UTC().Format(time.RFC3339)

	if err := s.queue.Enqueue(ctx, moved); err != nil {
		return false, nil
	}
	return true, nil
}

// ReplayFromDLQ finds messageID among the queue's peeked entries, restores
// it to its original topic and Pending status, resets delivery attempts to
// zero, strips the DLQ bookkeeping headers, and re-enqueues it. Returns
// false if the message isn't found.
func (s *Service) ReplayFromDLQ(ctx context.Context, messageID uuid.UUID) (bool, error) {
	entries, err := s.queue.Peek(ctx, 0)
	if err != nil {
		return false, fmt.Errorf("scanning queue for %s: %w", messageID, err)
	}

	for _, entry := range entries {
		if entry.MessageID != messageID {
			continue
		}

		originalTopic, ok := entry.Headers[headerOriginalTopic]
		if !ok {
			return false, fmt.Errorf("message %s has no %s header; it was not moved to DLQ by this service", messageID, headerOriginalTopic)
		}

		replayed := entry.Clone()
		replayed.TopicName = originalTopic
		replayed.Status = message.StatusPending
		replayed.DeliveryAttempts = 0
		delete(replayed.Headers, headerOriginalTopic)
		delete(replayed.Headers, headerReason)

		if err := s.queue.Enqueue(ctx, replayed); err != nil {
			return false, fmt.Errorf("re-enqueuing replayed message %s: %w", messageID, err)
		}
		return true, nil
	}

	return false, nil
}
