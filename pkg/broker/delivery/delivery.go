// Package delivery implements the per-message retry loop (C8) and its
// exactly-once wrapper (C9).
package delivery

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/coreshift/switchyard/internal/telemetry"
	"github.com/coreshift/switchyard/pkg/broker/dlq"
	"github.com/coreshift/switchyard/pkg/broker/message"
)

// DeliverFunc performs the actual hand-off to a consumer, returning the
// consumer id that accepted the message on success.
type DeliverFunc func(ctx context.Context, msg message.Message) (consumerID string, err error)

// RetryConfig controls DeliveryService's exponential backoff.
type RetryConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	MaxRetries     int
}

// DefaultRetryConfig mirrors the documented defaults: 100ms initial, 5s cap,
// 2x multiplier, 5 retries (6 attempts total before DLQ).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
		MaxRetries:     5,
	}
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt-1))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	return time.Duration(d)
}

// Result is the outcome of a delivery attempt sequence.
type Result struct {
	IsSuccess        bool   `json:"is_success"`
	IsDuplicate      bool   `json:"is_duplicate,omitempty"`
	DeliveryAttempts int    `json:"delivery_attempts"`
	TotalDelayMs     int64  `json:"total_delay_ms"`
	ConsumerID       string `json:"consumer_id,omitempty"`
	MovedToDLQ       bool   `json:"moved_to_dlq,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// Service runs deliverWithRetry: it calls deliverFn with exponential
// backoff until success or retry exhaustion, at which point the message is
// handed off to the dead-letter queue.
type Service struct {
	dlq    *dlq.Service
	config RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewService builds a Service. A zero-value RetryConfig is replaced with
// DefaultRetryConfig.
func NewService(dlqSvc *dlq.Service, config RetryConfig, logger *slog.Logger) *Service {
	if config == (RetryConfig{}) {
		config = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dlq:    dlqSvc,
		config: config,
		logger: logger,
		sleep:  ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DeliverWithRetry attempts delivery, retrying on failure with exponential
// backoff up to MaxRetries+1 total attempts before handing the message to
// the DLQ. Cancellation propagates as an error; partial retry state is not
// persisted.
func (s *Service) DeliverWithRetry(ctx context.Context, msg message.Message, deliverFn DeliverFunc) (Result, error) {
	current := msg.Clone()
	attempt := current.DeliveryAttempts
	var totalDelay time.Duration

	for {
		attempt++
		current.DeliveryAttempts = attempt

		consumerID, err := deliverFn(ctx, current)
		if err == nil {
			telemetry.DeliveryAttemptsTotal.WithLabelValues("success").Inc()
			return Result{
				IsSuccess:        true,
				DeliveryAttempts: attempt,
				TotalDelayMs:     totalDelay.Milliseconds(),
				ConsumerID:       consumerID,
			}, nil
		}

		telemetry.DeliveryAttemptsTotal.WithLabelValues("failure").Inc()

		if attempt >= s.config.MaxRetries+1 {
			telemetry.DeliveryAttemptsTotal.WithLabelValues("exhausted").Inc()
			moved, _ := s.dlq.MoveToDLQ(ctx, current, err.Error())
			return Result{
				IsSuccess:        false,
				DeliveryAttempts: attempt,
				TotalDelayMs:     totalDelay.Milliseconds(),
				MovedToDLQ:       moved,
				ErrorMessage:     err.Error(),
			}, nil
		}

		delay := s.config.backoff(attempt)
		totalDelay += delay
		s.logger.Warn("delivery attempt failed, retrying", "message_id", current.MessageID, "attempt", attempt, "delay", delay, "error", err)
		if waitErr := s.sleep(ctx, delay); waitErr != nil {
			return Result{}, waitErr
		}
	}
}
