package router

import (
	"context"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// ContentBasedStrategy matches subscriptions against message headers. A
// subscription with no filter (or an empty one) always matches; otherwise
// every key in its filter must be present in the message headers with the
// exact value.
type ContentBasedStrategy struct{}

func (s *ContentBasedStrategy) Name() string { return "content_based" }

func (s *ContentBasedStrategy) Select(_ context.Context, msg message.Message, active []message.Subscription) RouteResult {
	var matched []string
	for _, sub := range active {
		if matches(sub.Filter, msg.Headers) {
			matched = append(matched, sub.ID())
		}
	}

	if len(matched) == 0 {
		return RouteResult{
			Success:      false,
			StrategyName: s.Name(),
			ErrorMessage: "No matching consumers for message headers",
			Metadata: map[string]any{
				"totalActive": len(active),
			},
		}
	}

	return RouteResult{
		ConsumerIDs:  matched,
		Success:      true,
		StrategyName: s.Name(),
		Metadata: map[string]any{
			"totalActive":  len(active),
			"matchedCount": len(matched),
		},
	}
}

func matches(filter, headers map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		if got, ok := headers[k]; !ok || got != want {
			return false
		}
	}
	return true
}
