// Package notify delivers health alerts to the console and external sinks.
package notify

import (
	"context"
	"time"
)

// Severity grades an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// AlertEvent is one alert raised by a health check. Every failed probe raises
// exactly one event; events are never deduplicated or suppressed.
type AlertEvent struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Target    string    `json:"target"`
	CheckID   string    `json:"check_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers alert events.
type Notifier interface {
	Notify(ctx context.Context, event AlertEvent) error
}

func targetKey(event AlertEvent) string {
	if event.Target == "" {
		return "default"
	}
	return event.Target
}
