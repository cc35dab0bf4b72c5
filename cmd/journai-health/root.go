package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/config"
	"github.com/journai/journai-ops/internal/console"
	"github.com/journai/journai-ops/internal/health"
	"github.com/journai/journai-ops/internal/healthcheck"
	"github.com/journai/journai-ops/internal/logging"
	"github.com/journai/journai-ops/internal/metrics"
	"github.com/journai/journai-ops/internal/runner"
	"github.com/journai/journai-ops/internal/server"
)

func newRootCmd() *cobra.Command {
	var (
		jsonOutput bool
		workDir    string
	)

	cmd := &cobra.Command{
		Use:   "journai-health",
		Short: "Check the health of the Journai deployment",
		Long: `Probes the application URL, the database, and the configured dependencies
(data API, object storage, Secret Manager) once. The exit code is 0 when the
overall status is healthy and 1 otherwise.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMonitor(workDir)
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)
			exec := command.NewOSExecutor(logger)

			code, err := runSingle(cmd.Context(), cfg, exec, logger, cmd.OutOrStdout(), jsonOutput)
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "Directory holding the .env file (default: current directory)")

	cmd.AddCommand(newMonitorCmd(&workDir))
	return cmd
}

func newMonitorCmd(workDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run health checks continuously",
		Long: `Runs a health cycle immediately and then every JOURNAI_HEALTH_INTERVAL until
interrupted. Liveness endpoints (/healthz, /readyz) and Prometheus metrics
(/metrics) are served on JOURNAI_HEALTH_PORT and JOURNAI_METRICS_PORT.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMonitor(*workDir)
			if err != nil {
				return err
			}
			logger := logging.NewWithLevel(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runMonitor(ctx, cfg, command.NewOSExecutor(logger), logger)
		},
	}
}

func runSingle(ctx context.Context, cfg config.MonitorConfig, exec command.Executor, logger zerolog.Logger, w io.Writer, jsonOutput bool) (int, error) {
	checker, closeProbes, err := buildChecker(ctx, cfg, exec, logger, nil)
	if err != nil {
		return 1, err
	}
	defer closeProbes()

	result := checker.Check(ctx)

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return 1, fmt.Errorf("encode result: %w", err)
		}
	} else {
		printResult(console.New(w), result)
	}
	return health.ExitCode(result), nil
}

func runMonitor(ctx context.Context, cfg config.MonitorConfig, exec command.Executor, logger zerolog.Logger) error {
	m := metrics.New()
	tracker := healthcheck.NewTracker()

	checker, closeProbes, err := buildChecker(ctx, cfg, exec, logger, m)
	if err != nil {
		return err
	}
	defer closeProbes()

	logger.Info().
		Str("app_url", cfg.AppURL).
		Dur("interval", cfg.Interval).
		Dur("timeout", cfg.Timeout).
		Bool("dry_run", cfg.DryRun).
		Msg("journai-health monitor starting")

	loop := runner.New(logger, cfg.Interval, checker, runner.WithTracker(tracker))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, logger, server.Config{
			HealthPort:   cfg.HealthPort,
			MetricsPort:  cfg.MetricsPort,
			PollInterval: cfg.Interval,
		}, tracker, m)
	})
	return g.Wait()
}

func printResult(out *console.Printer, result health.Result) {
	names := make([]string, 0, len(result.Targets))
	for name := range result.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target := result.Targets[name]
		switch target.Status {
		case health.StatusHealthy:
			out.Success("%s (%s)", name, target.Duration.Round(time.Millisecond))
		case health.StatusDegraded:
			out.Warning("%s: %s", name, target.Error)
		default:
			out.Error("%s: %s", name, target.Error)
		}
	}

	switch result.Status {
	case health.StatusHealthy:
		out.Success("Overall: %s", result.Status)
	case health.StatusDegraded:
		out.Warning("Overall: %s", result.Status)
	default:
		out.Error("Overall: %s", result.Status)
	}
}
