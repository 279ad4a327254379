// Package router implements the broker's consumer-selection strategies (C7):
// Direct, FanOut, LoadBalanced, Priority, and ContentBased.
package router

import (
	"context"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// RouteResult is the outcome of routing a single message to zero or more
// consumers.
type RouteResult struct {
	ConsumerIDs  []string       `json:"consumer_ids"`
	Success      bool           `json:"success"`
	Reason       string         `json:"reason,omitempty"`
	StrategyName string         `json:"strategy_name"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Strategy selects a consumer subset from a set of already-filtered active
// subscriptions.
type Strategy interface {
	Name() string
	Select(ctx context.Context, msg message.Message, active []message.Subscription) RouteResult
}

// Router dispatches to a named strategy, defaulting by topic type when the
// topic doesn't name a recognised one.
type Router struct {
	strategies map[string]Strategy
}

// New builds a Router with the standard strategy set registered by name.
func New() *Router {
	r := &Router{strategies: make(map[string]Strategy)}
	for _, s := range []Strategy{
		&DirectStrategy{},
		&FanOutStrategy{},
		NewLoadBalancedStrategy(),
		NewPriorityStrategy(),
		&ContentBasedStrategy{},
	} {
		r.strategies[s.Name()] = s
	}
	return r
}

// Route selects consumers for msg among topic's subscriptions. Inactive
// subscriptions are filtered out before any strategy runs; if none remain,
// the result is a failure with reason "No active consumers".
func (r *Router) Route(ctx context.Context, msg message.Message, topic message.Topic, subs []message.Subscription) RouteResult {
	active := make([]message.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.IsActive {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return RouteResult{
			Success:      false,
			ErrorMessage: "No active consumers",
			StrategyName: topic.RoutingStrategyName(),
		}
	}

	name := topic.RoutingStrategyName()
	strategy, ok := r.strategies[name]
	if !ok {
		strategy = r.defaultStrategy(topic)
	}

	return strategy.Select(ctx, msg, active)
}

func (r *Router) defaultStrategy(topic message.Topic) Strategy {
	if topic.Type == message.TopicQueue {
		return r.strategies["load_balanced"]
	}
	return r.strategies["fan_out"]
}
