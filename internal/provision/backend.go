package provision

import (
	"context"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/journai/journai-ops/internal/command"
)

const supabaseBinary = "supabase"

// prepareBackend links and migrates the hosted Supabase project, or starts the
// local stack when the local backend is selected.
func (p *Provisioner) prepareBackend(ctx context.Context, _ Facts) Outcome {
	switch {
	case p.cfg.SupabaseProjectRef != "":
		return p.prepareRemoteBackend(ctx)
	case p.cfg.LocalBackend:
		return p.prepareLocalBackend(ctx)
	default:
		p.out.Info("no backend project configured, skipping")
		p.note("Set SUPABASE_PROJECT_REF and re-run to link and migrate the backend project")
		return Succeeded()
	}
}

func (p *Provisioner) prepareRemoteBackend(ctx context.Context) Outcome {
	link := p.inWorkDir(command.New(supabaseBinary, "link", "--project-ref", p.cfg.SupabaseProjectRef))
	if _, err := p.exec.Run(ctx, link); err != nil {
		return p.fail(Soft, "link backend project", err)
	}
	p.out.Success("linked backend project %s", p.cfg.SupabaseProjectRef)

	push := p.inWorkDir(command.New(supabaseBinary, "db", "push"))
	push.InheritOutput = true
	if _, err := p.exec.Run(ctx, push); err != nil {
		return p.fail(Soft, "apply backend migrations", err)
	}
	p.out.Success("backend migrations applied")
	return Succeeded()
}

func (p *Provisioner) prepareLocalBackend(ctx context.Context) Outcome {
	if !p.files.Exists(filepath.Join("supabase", "config.toml")) {
		if _, err := p.exec.Run(ctx, p.inWorkDir(command.New(supabaseBinary, "init"))); err != nil {
			return p.fail(Soft, "initialize local backend", err)
		}
		p.out.Success("local backend initialized")
	}

	if p.docker != nil {
		if err := p.docker.Ping(ctx); err != nil {
			return p.fail(Soft, "reach docker daemon", err)
		}
		p.out.Success("docker daemon reachable")
	}

	start := p.inWorkDir(command.New(supabaseBinary, "start"))
	start.InheritOutput = true
	if _, err := p.exec.Run(ctx, start); err != nil {
		return p.fail(Soft, "start local backend", err)
	}
	p.out.Success("local backend started")

	res, err := p.exec.Run(ctx, p.inWorkDir(command.New(supabaseBinary, "status", "-o", "env")))
	if err != nil {
		return p.fail(Soft, "read local backend status", err)
	}
	status, err := godotenv.Unmarshal(res.Stdout)
	if err != nil {
		return p.fail(Soft, "parse local backend status", err)
	}
	p.setBackend(status["API_URL"], status["ANON_KEY"])
	if status["API_URL"] != "" {
		p.out.KeyValue("Backend URL", status["API_URL"])
	}
	return Succeeded()
}
