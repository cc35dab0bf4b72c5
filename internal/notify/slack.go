package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackNotifier posts Block Kit alerts to an incoming webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	policy     deliveryPolicy
	poster     *alertPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackBackoff overrides the retry schedule for failed deliveries.
func WithSlackBackoff(initial, maxWait, giveUpAfter time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.policy.initialBackoff = initial
		s.policy.maxBackoff = maxWait
		s.policy.giveUpAfter = giveUpAfter
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; slack alerts disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		policy:     defaultDelivery,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newAlertPoster("slack", webhookURL, notifier.policy)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event AlertEvent) error {
	payload, err := json.Marshal(buildSlackMessage(event))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.deliver(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("target", event.Target).
		Str("severity", string(event.Severity)).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessage(event AlertEvent) slack.WebhookMessage {
	summary := fmt.Sprintf("%s %s: %s", severityEmoji(event.Severity), strings.ToUpper(string(event.Severity)), targetKey(event))
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, true, false))

	body := slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn", event.Message, false, false),
		nil, nil,
	)

	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Target: *%s*", targetKey(event)), false, false),
	}
	if event.CheckID != "" {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", "Check: `"+event.CheckID+"`", false, false))
	}
	if !event.Timestamp.IsZero() {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", event.Timestamp.UTC().Format(time.RFC3339), false, false))
	}

	blockSet := slack.Blocks{BlockSet: []slack.Block{
		header,
		body,
		slack.NewContextBlock("", contextElements...),
	}}
	return slack.WebhookMessage{
		Text:   summary + " - " + event.Message,
		Blocks: &blockSet,
	}
}

func severityEmoji(severity Severity) string {
	if severity == SeverityCritical {
		return ":red_circle:"
	}
	return ":large_yellow_circle:"
}
