package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/config"
	"github.com/journai/journai-ops/internal/health"
	"github.com/journai/journai-ops/internal/metrics"
	"github.com/journai/journai-ops/internal/notify"
)

// probeSet groups the probes for one Checker and releases their resources.
type probeSet struct {
	primary      []health.Probe
	dependencies []health.Probe
	closers      []func()
}

func (p *probeSet) Close() {
	for _, closeFn := range p.closers {
		closeFn()
	}
}

// buildProbes creates the application, database and dependency probes.
// Dependencies that are not configured are left out.
func buildProbes(ctx context.Context, cfg config.MonitorConfig, exec command.Executor, logger zerolog.Logger) (*probeSet, error) {
	set := &probeSet{}

	set.primary = append(set.primary, health.NewHTTPProbe(health.TargetApplication, cfg.AppURL, health.WithTimeout(cfg.Timeout)))

	if cfg.DatabaseURL != "" {
		pg, err := health.NewPostgresProbe(ctx, cfg.DatabaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		set.primary = append(set.primary, pg)
		set.closers = append(set.closers, pg.Close)
	} else {
		logger.Debug().Msg("JOURNAI_DATABASE_URL not set; database probe is a stub")
		set.primary = append(set.primary, health.StubDatabaseProbe{})
	}

	if cfg.DataAPIURL != "" {
		set.dependencies = append(set.dependencies, health.NewDataAPIProbe(cfg.DataAPIURL, cfg.DataAPIKey))
	}

	if cfg.StorageBucket != "" {
		if cfg.UsesHMACStorage() {
			s3Probe, err := health.NewS3BucketProbe(ctx, cfg.StorageEndpoint, cfg.StorageHMACAccessKey, cfg.StorageHMACSecret, cfg.StorageBucket)
			if err != nil {
				set.Close()
				return nil, err
			}
			set.dependencies = append(set.dependencies, s3Probe)
		} else {
			set.dependencies = append(set.dependencies, health.NewBucketProbe(exec, cfg.ProjectID, cfg.StorageBucket))
		}
	}

	if cfg.ProjectID != "" {
		set.dependencies = append(set.dependencies, health.NewSecretManagerProbe(exec, cfg.ProjectID))
	}

	return set, nil
}

// buildNotifier always logs alerts and forwards them to every configured sink.
// In dry-run mode the forwarding sinks only log what they would send.
func buildNotifier(cfg config.MonitorConfig, exec command.Executor, logger zerolog.Logger) (notify.Notifier, error) {
	var sinks []notify.Notifier

	if cfg.CloudLoggingAlerts {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("JOURNAI_ALERT_CLOUD_LOGGING requires JOURNAI_PROJECT_ID")
		}
		sinks = append(sinks, notify.NewCloudLoggingNotifier(logger, exec, cfg.ProjectID, cfg.AlertLogName))
	}
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	}
	webhook, err := notify.NewWebhookNotifier(logger, cfg.AlertWebhookURL, cfg.AlertWebhookTemplate)
	if err != nil {
		return nil, err
	}
	if webhook != nil {
		sinks = append(sinks, webhook)
	}

	forward := notify.Notifier(notify.NewMultiNotifier(sinks...))
	if cfg.DryRun {
		forward = notify.NewDryRunNotifier(logger, forward)
	}
	return notify.NewMultiNotifier(notify.NewLogNotifier(logger), forward), nil
}

// buildChecker wires probes, alert sinks and metrics into a Checker.
func buildChecker(ctx context.Context, cfg config.MonitorConfig, exec command.Executor, logger zerolog.Logger, m *metrics.Metrics) (*health.Checker, func(), error) {
	notifier, err := buildNotifier(cfg, exec, logger)
	if err != nil {
		return nil, nil, err
	}
	probes, err := buildProbes(ctx, cfg, exec, logger)
	if err != nil {
		return nil, nil, err
	}

	checker := health.NewChecker(logger, notifier,
		health.WithPrimary(probes.primary...),
		health.WithDependencies(probes.dependencies...),
		health.WithMetrics(m),
	)
	return checker, probes.Close, nil
}
