package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/artifact"
	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/config"
	"github.com/journai/journai-ops/internal/console"
	"github.com/journai/journai-ops/internal/dockerd"
	"github.com/journai/journai-ops/internal/gcloud"
	"github.com/journai/journai-ops/internal/secrets"
)

// Deps are the collaborators a Provisioner drives. Only Exec is required.
type Deps struct {
	Exec     command.Executor
	Projects gcloud.ProjectFinder
	Secrets  *secrets.Store
	// Docker is consulted before starting the local backend; nil skips the check.
	Docker dockerd.Pinger
	Files  *artifact.Writer
	Out    *console.Printer
	Logger zerolog.Logger
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Provisioner turns a ProvisioningConfig into an ordered list of steps.
type Provisioner struct {
	cfg      config.ProvisioningConfig
	exec     command.Executor
	cli      gcloud.CLI
	projects gcloud.ProjectFinder
	secrets  *secrets.Store
	docker   dockerd.Pinger
	files    *artifact.Writer
	out      *console.Printer
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu             sync.Mutex
	backendURL     string
	backendAnonKey string
	notes          []string
}

// New wires a Provisioner, filling in defaults for optional dependencies.
func New(cfg config.ProvisioningConfig, deps Deps) *Provisioner {
	p := &Provisioner{
		cfg:            cfg,
		exec:           deps.Exec,
		cli:            gcloud.CLI{Project: cfg.ProjectID},
		projects:       deps.Projects,
		secrets:        deps.Secrets,
		docker:         deps.Docker,
		files:          deps.Files,
		out:            deps.Out,
		logger:         deps.Logger.With().Str("component", "provision").Logger(),
		sleep:          deps.Sleep,
		backendURL:     cfg.SupabaseURL,
		backendAnonKey: cfg.SupabaseAnonKey,
	}
	if p.projects == nil {
		p.projects = gcloud.NewCLIProjectFinder(deps.Exec)
	}
	if p.secrets == nil {
		p.secrets = secrets.NewStore(deps.Exec, cfg.ProjectID, deps.Logger)
	}
	if p.files == nil {
		p.files = artifact.NewWriter(cfg.WorkDir, deps.Logger)
	}
	if p.out == nil {
		p.out = console.Discard()
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

// Steps returns the provisioning pipeline in execution order.
func (p *Provisioner) Steps() []Step {
	return []Step{
		{Name: "Check prerequisites", Run: p.checkPrerequisites},
		{Name: "Ensure project", Run: p.ensureProject},
		{Name: "Enable APIs", Run: p.enableAPIs},
		{Name: "Ensure App Engine application", Run: p.ensureAppEngine},
		{Name: "Ensure Cloud SQL instance", Run: p.ensureSQLInstance},
		{Name: "Ensure database", Run: p.ensureDatabase},
		{Name: "Ensure database user", Run: p.ensureDatabaseUser},
		{Name: "Prepare backend", Run: p.prepareBackend},
		{Name: "Store secrets", Run: p.storeSecrets},
		{Name: "Grant IAM roles", Run: p.grantIAM},
		{Name: "Write environment file", Run: p.writeEnvFile},
		{Name: "Build and deploy", Run: p.buildAndDeploy},
		{Name: "Configure custom domain", Run: p.configureDomain},
		{Name: "Configure monitoring", Run: p.configureMonitoring},
	}
}

// Notes returns follow-up hints collected while the steps ran.
func (p *Provisioner) Notes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notes...)
}

func (p *Provisioner) note(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, fmt.Sprintf(format, a...))
}

func (p *Provisioner) backend() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backendURL, p.backendAnonKey
}

func (p *Provisioner) setBackend(url, anonKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if url != "" {
		p.backendURL = url
	}
	if anonKey != "" {
		p.backendAnonKey = anonKey
	}
}

func (p *Provisioner) name(suffix string) string {
	return p.cfg.AppName + "-" + suffix
}

func (p *Provisioner) inWorkDir(cmd command.Command) command.Command {
	cmd.Dir = p.cfg.WorkDir
	return cmd
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
