package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreshift/switchyard/internal/telemetry"
	"github.com/coreshift/switchyard/pkg/broker/message"
	"github.com/coreshift/switchyard/pkg/broker/storage"
)

// AckTimeoutMonitor runs on a fixed polling interval, requeuing messages
// whose ack deadline has passed without an acknowledgement.
type AckTimeoutMonitor struct {
	queue        storage.Queue
	ackTimeout   time.Duration
	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger
	now          func() time.Time
}

// NewAckTimeoutMonitor builds a monitor. batchSize <= 0 means "peek everything".
func NewAckTimeoutMonitor(queue storage.Queue, ackTimeout, pollInterval time.Duration, batchSize int, logger *slog.Logger) *AckTimeoutMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AckTimeoutMonitor{
		queue:        queue,
		ackTimeout:   ackTimeout,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		now:          time.Now,
	}
}

// Run blocks, polling until ctx is cancelled. Per-message errors are logged
// and don't stop the loop; a queue-wide scan error backs off one interval
// before retrying.
func (m *AckTimeoutMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				m.logger.Error("ack-timeout scan failed, backing off", "error", err)
			}
		}
	}
}

func (m *AckTimeoutMonitor) tick(ctx context.Context) error {
	entries, err := m.queue.Peek(ctx, m.batchSize)
	if err != nil {
		return err
	}

	now := m.now()
	for _, msg := range entries {
		if msg.AckDeadline == nil || !msg.AckDeadline.Before(now) {
			continue
		}
		if err := m.requeue(ctx, msg, now); err != nil {
			m.logger.Error("requeuing expired message failed", "message_id", msg.MessageID, "error", err)
			continue
		}
	}
	return nil
}

func (m *AckTimeoutMonitor) requeue(ctx context.Context, msg message.Message, now time.Time) error {
	requeued := msg.Clone()
	requeued.DeliveryAttempts++
	deadline := now.Add(m.ackTimeout)
	requeued.AckDeadline = &deadline

	if err := m.queue.Enqueue(ctx, requeued); err != nil {
		return err
	}
	telemetry.AckTimeoutsRequeuedTotal.Inc()
	return nil
}
