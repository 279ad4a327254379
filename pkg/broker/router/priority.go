package router

import (
	"context"
	"sync/atomic"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

const (
	highPriorityThreshold = 7
	lowPriorityThreshold  = 3
)

// PriorityStrategy picks a single consumer by message priority tier: the
// first subscription for high-priority messages, the last for low-priority
// ones, and a round-robin cursor (independent of LoadBalancedStrategy's) for
// everything in between.
type PriorityStrategy struct {
	cursor atomic.Uint64
}

// NewPriorityStrategy creates a PriorityStrategy with a zeroed cursor.
func NewPriorityStrategy() *PriorityStrategy {
	return &PriorityStrategy{}
}

func (s *PriorityStrategy) Name() string { return "priority" }

func (s *PriorityStrategy) Select(_ context.Context, msg message.Message, active []message.Subscription) RouteResult {
	var (
		idx  int
		tier string
	)

	switch {
	case msg.Priority >= highPriorityThreshold:
		idx = 0
		tier = "high"
	case msg.Priority <= lowPriorityThreshold:
		idx = len(active) - 1
		tier = "low"
	default:
		v := s.cursor.Add(1) - 1
		idx = int(v % uint64(len(active)))
		tier = "normal"
	}

	chosen := active[idx]
	return RouteResult{
		ConsumerIDs:  []string{chosen.ID()},
		Success:      true,
		StrategyName: s.Name(),
		Metadata: map[string]any{
			"totalActive":     len(active),
			"selectedIndex":   idx,
			"messagePriority": msg.Priority,
			"priorityTier":    tier,
		},
	}
}
