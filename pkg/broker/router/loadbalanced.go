package router

import (
	"context"
	"sync/atomic"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// LoadBalancedStrategy round-robins across active subscriptions. The cursor
// is per-router-instance state, advanced atomically so concurrent callers
// still see a uniform distribution over many calls.
type LoadBalancedStrategy struct {
	cursor atomic.Uint64
}

// NewLoadBalancedStrategy creates a LoadBalancedStrategy with a zeroed cursor.
func NewLoadBalancedStrategy() *LoadBalancedStrategy {
	return &LoadBalancedStrategy{}
}

func (s *LoadBalancedStrategy) Name() string { return "load_balanced" }

func (s *LoadBalancedStrategy) Select(_ context.Context, _ message.Message, active []message.Subscription) RouteResult {
	idx := s.next(len(active))
	chosen := active[idx]
	return RouteResult{
		ConsumerIDs:  []string{chosen.ID()},
		Success:      true,
		StrategyName: s.Name(),
		Metadata: map[string]any{
			"totalActive":   len(active),
			"selectedIndex": idx,
		},
	}
}

func (s *LoadBalancedStrategy) next(n int) int {
	v := s.cursor.Add(1) - 1
	return int(v % uint64(n))
}
