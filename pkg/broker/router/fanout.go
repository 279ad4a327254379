package router

import (
	"context"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// FanOutStrategy routes to every active subscription, input order preserved.
type FanOutStrategy struct{}

func (s *FanOutStrategy) Name() string { return "fan_out" }

func (s *FanOutStrategy) Select(_ context.Context, _ message.Message, active []message.Subscription) RouteResult {
	ids := make([]string, len(active))
	for i, sub := range active {
		ids[i] = sub.ID()
	}
	return RouteResult{
		ConsumerIDs:  ids,
		Success:      true,
		StrategyName: s.Name(),
		Metadata: map[string]any{
			"totalActive":    len(active),
			"broadcastCount": len(ids),
		},
	}
}
