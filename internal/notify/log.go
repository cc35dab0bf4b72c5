package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the structured console log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns the console alert sink.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alerts").Logger()}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event AlertEvent) error {
	entry := n.logger.Warn()
	if event.Severity == SeverityCritical {
		entry = n.logger.Error()
	}
	entry.
		Str("target", event.Target).
		Str("severity", string(event.Severity)).
		Str("check_id", event.CheckID).
		Time("alert_time", event.Timestamp).
		Msg(event.Message)
	return nil
}
