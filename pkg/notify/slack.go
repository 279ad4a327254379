// Package notify wraps slack-go/slack to post operator-facing messages
// about deployment pipeline outcomes, DLQ moves, and schema approval
// decisions to an operations channel. It implements the
// narrow Notify(ctx, subject, body) shape that pkg/schema/approval and
// pkg/deploy/pipeline each declare locally.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"

	"github.com/coreshift/switchyard/internal/telemetry"
)

// SlackNotifier posts deployment and broker events to a Slack channel. If
// constructed without a bot token it is a no-op, the same optionality as
// "auth is a thin adapter outside the core" optionality.
type SlackNotifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier. An empty botToken produces a
// disabled notifier whose Notify calls are logged but never posted.
func NewSlackNotifier(botToken, channel string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackNotifier{client: client, channel: channel, logger: logger}
}

// IsEnabled reports whether the notifier has a client and destination
// channel configured.
func (n *SlackNotifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// Notify posts subject/body as a single Slack message. Disabled notifiers
// log at Debug and return nil rather than erroring, so a missing Slack
// token never fails the caller's pipeline stage or approval flow.
func (n *SlackNotifier) Notify(ctx context.Context, subject, body string) error {
	if !n.IsEnabled() {
		n.logger.Debug("slack notifier disabled, skipping notification", "subject", subject)
		return nil
	}

	text := fmt.Sprintf("*%s*\n%s", subject, body)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("slack", "error").Inc()
		return fmt.Errorf("posting notification to slack: %w", err)
	}

	telemetry.NotificationsTotal.WithLabelValues("slack", "sent").Inc()
	n.logger.Info("posted notification to slack", "subject", subject, "channel", n.channel)
	return nil
}
