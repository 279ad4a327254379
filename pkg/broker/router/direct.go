package router

import (
	"context"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// DirectStrategy routes to the first active subscription only.
type DirectStrategy struct{}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Select(_ context.Context, _ message.Message, active []message.Subscription) RouteResult {
	chosen := active[0]
	return RouteResult{
		ConsumerIDs:  []string{chosen.ID()},
		Success:      true,
		StrategyName: s.Name(),
		Metadata: map[string]any{
			"totalActive": len(active),
		},
	}
}
