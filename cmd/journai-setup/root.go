package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/journai/journai-ops/internal/artifact"
	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/config"
	"github.com/journai/journai-ops/internal/console"
	"github.com/journai/journai-ops/internal/dockerd"
	"github.com/journai/journai-ops/internal/gcloud"
	"github.com/journai/journai-ops/internal/logging"
	"github.com/journai/journai-ops/internal/metrics"
	"github.com/journai/journai-ops/internal/orchestrator"
	"github.com/journai/journai-ops/internal/prompt"
	"github.com/journai/journai-ops/internal/provision"
)

var errNotConfirmed = errors.New("setup cancelled")

type setupOptions struct {
	yes                 bool
	nonInteractive      bool
	skipBuild           bool
	summaryFile         string
	apiWait             time.Duration
	apiWaitSet          bool
	logLevel            string
	workDir             string
	nativeProjectLookup bool
	metricsFile         string
}

// setupEnv holds the process-level collaborators so tests can replace them.
type setupEnv struct {
	logger   zerolog.Logger
	out      *console.Printer
	exec     command.Executor
	prompter config.Prompter
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRootCmd() *cobra.Command {
	opts := setupOptions{}

	cmd := &cobra.Command{
		Use:   "journai-setup",
		Short: "Provision the Journai infrastructure on Google Cloud",
		Long: `Creates or verifies every resource Journai needs: the GCP project, required
APIs, the App Engine application, the Cloud SQL instance with its database and
user, Secret Manager secrets, the backend project, the frontend deployment, an
optional custom domain with HTTPS load balancing, and monitoring.

Values are read from the environment (and .env). Missing values are prompted
for when running in a terminal.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.apiWaitSet = cmd.Flags().Changed("api-wait")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.NewWithWriter(os.Stderr, opts.logLevel)
			env := setupEnv{
				logger: logger,
				out:    console.Stdout(),
				exec:   command.NewOSExecutor(logger),
			}
			if !opts.nonInteractive && prompt.IsInteractive(os.Stdin) {
				env.prompter = prompt.NewHuh()
			}
			return runSetup(ctx, opts, env)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation prompt")
	flags.BoolVar(&opts.nonInteractive, "non-interactive", false, "Never prompt; fail when a required value is missing")
	flags.BoolVar(&opts.skipBuild, "skip-build", false, "Deploy the existing dist/ without running npm")
	flags.StringVar(&opts.summaryFile, "summary-file", orchestrator.DefaultSummaryFile, "Deployment summary file name, relative to the work dir")
	flags.DurationVar(&opts.apiWait, "api-wait", 30*time.Second, "Pause after enabling APIs")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Structured log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.workDir, "work-dir", "", "Frontend project directory (default: current directory)")
	flags.BoolVar(&opts.nativeProjectLookup, "native-project-lookup", false, "Look up the project with the Resource Manager API instead of gcloud")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write per-step Prometheus metrics to this textfile when the run ends")

	return cmd
}

func runSetup(ctx context.Context, opts setupOptions, env setupEnv) error {
	out := env.out
	out.Header("Journai infrastructure setup")

	overrides := config.Overrides{SkipBuild: opts.skipBuild, WorkDir: opts.workDir}
	if opts.apiWaitSet {
		wait := opts.apiWait
		overrides.APIEnableWait = &wait
	}

	cfg, err := config.ResolveProvisioning(ctx, env.prompter, overrides)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return errNotConfirmed
		}
		return fmt.Errorf("resolve configuration: %w", err)
	}

	printPlan(out, cfg)

	if env.prompter != nil && !opts.yes {
		ok, err := env.prompter.Confirm(ctx, "Provision these resources?", "Existing resources are left in place.")
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return errNotConfirmed
			}
			return fmt.Errorf("confirm setup: %w", err)
		}
		if !ok {
			out.Info("Nothing was changed")
			return errNotConfirmed
		}
	}

	deps := provision.Deps{
		Exec:   env.exec,
		Out:    out,
		Logger: env.logger,
		Sleep:  env.sleep,
	}

	if opts.nativeProjectLookup {
		finder, err := gcloud.NewResourceManagerFinder(ctx)
		if err != nil {
			out.Warning("Resource Manager lookup unavailable, using gcloud: %v", err)
		} else {
			defer func() { _ = finder.Close() }()
			deps.Projects = finder
		}
	}

	if cfg.LocalBackend {
		docker, err := dockerd.NewClient("", 0)
		if err != nil {
			out.Warning("Docker client unavailable: %v", err)
		} else {
			defer func() { _ = docker.Close() }()
			deps.Docker = docker
		}
	}

	provisioner := provision.New(cfg, deps)
	stepMetrics := metrics.NewSetup()
	orch := orchestrator.New(env.logger, out, orchestrator.WithMetrics(stepMetrics))

	report, err := orch.Run(ctx, provisioner.Steps())
	if opts.metricsFile != "" {
		if writeErr := stepMetrics.WriteTextfile(opts.metricsFile); writeErr != nil {
			out.Warning("Could not write metrics: %v", writeErr)
		}
	}
	if err != nil {
		return err
	}

	summary := orchestrator.NewSummary(cfg, report, provisioner.Notes())
	out.Println(summary.Render())

	path, err := summary.Write(ctx, artifact.NewWriter(cfg.WorkDir, env.logger), opts.summaryFile)
	if err != nil {
		out.Warning("Could not write summary: %v", err)
		return nil
	}
	out.Success("Summary written to %s", path)
	return nil
}

func printPlan(out *console.Printer, cfg config.ProvisioningConfig) {
	out.KeyValue("Project", cfg.ProjectID)
	out.KeyValue("Region", cfg.Region)
	out.KeyValue("Environment", cfg.Environment)
	out.KeyValue("Cloud SQL", cfg.ConnectionName())
	if cfg.Domain != "" {
		out.KeyValue("Domain", cfg.Domain)
	}
	if cfg.SkipBuild {
		out.KeyValue("Build", "skipped")
	}
}
