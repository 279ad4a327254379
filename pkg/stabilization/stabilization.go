// Package stabilization implements ResourceStabilizationService (C13): it
// polls node metrics after a deploy and decides when the cluster has
// settled back within threshold of its pre-deploy baseline.
package stabilization

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/internal/telemetry"
	"github.com/coreshift/switchyard/pkg/clustermetrics"
)

// Thresholds bound how far current metrics may drift from baseline (as a
// percentage of baseline) and still count as "stable".
type Thresholds struct {
	CPUDeltaPercent     float64
	MemDeltaPercent     float64
	LatencyDeltaPercent float64
}

// Config controls a single WaitForStabilization call.
type Config struct {
	Thresholds              Thresholds
	PollingInterval         time.Duration
	ConsecutiveStableChecks int
	MinimumWaitTime         time.Duration
	MaximumWaitTime         time.Duration
}

// Result is the outcome of waiting for stabilization.
type Result struct {
	IsStable                bool          `json:"is_stable"`
	ElapsedTime             time.Duration `json:"elapsed_time"`
	ConsecutiveStableChecks int           `json:"consecutive_stable_checks"`
	TotalChecks             int           `json:"total_checks"`
	TimeoutReached          bool          `json:"timeout_reached"`
}

// Service polls a MetricsProvider and evaluates stability against a
// baseline snapshot.
type Service struct {
	provider clustermetrics.Provider
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// New builds a Service over provider.
func New(provider clustermetrics.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   logger,
		sleep:    ctxSleep,
		now:      time.Now,
	}
}

// Baseline snapshots a cluster's current metrics, used as the reference
// point for a subsequent WaitForStabilization call.
func (s *Service) Baseline(ctx context.Context, environment string) (clustermetrics.ClusterSnapshot, error) {
	return s.provider.GetClusterMetrics(ctx, environment)
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

// WaitForStabilization polls nodeIDs' metrics every PollingInterval,
// tracking a run of consecutive stable checks against baseline. It reports
// stable once that run reaches ConsecutiveStableChecks and at least
// MinimumWaitTime has elapsed; it reports a timeout once MaximumWaitTime
// has elapsed first. Cancellation propagates during the poll wait.
func (s *Service) WaitForStabilization(ctx context.Context, nodeIDs []uuid.UUID, baseline clustermetrics.ClusterSnapshot, cfg Config) (Result, error) {
	start := s.now()
	consecutiveStable := 0
	totalChecks := 0

	for {
		elapsed := s.now().Sub(start)
		if elapsed >= cfg.MaximumWaitTime {
			return Result{
				IsStable:                false,
				ElapsedTime:             elapsed,
				ConsecutiveStableChecks: consecutiveStable,
				TotalChecks:             totalChecks,
				TimeoutReached:          true,
			}, nil
		}

		nodes, err := s.provider.GetNodesMetrics(ctx, nodeIDs)
		if err != nil {
			return Result{}, err
		}
		current := clustermetrics.Aggregate(nodes, s.now())
		totalChecks++

		stable := withinThreshold(current.AvgCPUPercent, baseline.AvgCPUPercent, cfg.Thresholds.CPUDeltaPercent) &&
			withinThreshold(current.AvgMemPercent, baseline.AvgMemPercent, cfg.Thresholds.MemDeltaPercent) &&
			withinThreshold(current.AvgLatencyMs, baseline.AvgLatencyMs, cfg.Thresholds.LatencyDeltaPercent)

		if stable {
			consecutiveStable++
			telemetry.StabilizationChecksTotal.WithLabelValues("stable").Inc()
		} else {
			consecutiveStable = 0
			telemetry.StabilizationChecksTotal.WithLabelValues("unstable").Inc()
		}

		elapsed = s.now().Sub(start)
		if consecutiveStable >= cfg.ConsecutiveStableChecks && elapsed >= cfg.MinimumWaitTime {
			return Result{
				IsStable:                true,
				ElapsedTime:             elapsed,
				ConsecutiveStableChecks: consecutiveStable,
				TotalChecks:             totalChecks,
				TimeoutReached:          false,
			}, nil
		}

		if err := s.sleep(ctx, cfg.PollingInterval); err != nil {
			return Result{}, err
		}
	}
}

// withinThreshold reports whether current is within deltaPercent of
// baseline, as a percentage of baseline. A zero baseline is treated as
// stable only when current is also zero, avoiding a division by zero.
func withinThreshold(current, baseline, deltaPercent float64) bool {
	if baseline == 0 {
		return current == 0
	}
	drift := math.Abs(current-baseline) / baseline * 100
	return drift <= deltaPercent
}
