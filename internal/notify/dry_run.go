package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs alerts without delivering them.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, event AlertEvent) error {
	n.logger.Info().
		Str("target", event.Target).
		Str("severity", string(event.Severity)).
		Str("check_id", event.CheckID).
		Str("message", event.Message).
		Msg("[DRY-RUN] Would notify")
	return nil
}
