package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/gcloud"
)

// CloudLoggingNotifier forwards alerts to a Cloud Logging log with `gcloud logging write`.
type CloudLoggingNotifier struct {
	logger  zerolog.Logger
	exec    command.Executor
	cli     gcloud.CLI
	logName string
}

// NewCloudLoggingNotifier returns a sink writing JSON entries to logName.
func NewCloudLoggingNotifier(logger zerolog.Logger, exec command.Executor, projectID, logName string) *CloudLoggingNotifier {
	return &CloudLoggingNotifier{
		logger:  logger,
		exec:    exec,
		cli:     gcloud.CLI{Project: projectID},
		logName: logName,
	}
}

// Notify implements Notifier.
func (n *CloudLoggingNotifier) Notify(ctx context.Context, event AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	_, err = n.exec.Run(ctx, n.cli.Cmd("logging", "write", n.logName, string(payload),
		"--payload-type=json",
		"--severity="+logSeverity(event.Severity),
	))
	if err != nil {
		return fmt.Errorf("write alert to cloud logging: %w", err)
	}

	n.logger.Debug().Str("target", event.Target).Str("log", n.logName).Msg("alert forwarded to cloud logging")
	return nil
}

func logSeverity(severity Severity) string {
	if severity == SeverityCritical {
		return "CRITICAL"
	}
	return "WARNING"
}
