package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/gcloud"
)

var requiredAPIs = []string{
	"appengine.googleapis.com",
	"sqladmin.googleapis.com",
	"secretmanager.googleapis.com",
	"cloudbuild.googleapis.com",
	"compute.googleapis.com",
	"monitoring.googleapis.com",
	"logging.googleapis.com",
	"iam.googleapis.com",
	"cloudresourcemanager.googleapis.com",
	"storage.googleapis.com",
}

func (p *Provisioner) checkPrerequisites(ctx context.Context, _ Facts) Outcome {
	if _, err := p.exec.Run(ctx, command.New(gcloud.Binary, "--version")); err != nil {
		return p.fail(Hard, "locate gcloud CLI", err)
	}
	p.out.Success("gcloud CLI found")

	res, err := p.exec.Run(ctx, p.cli.Global("auth", "list", "--filter=status:ACTIVE", "--format=value(account)"))
	if err != nil {
		return p.fail(Hard, "read gcloud credentials", err)
	}
	account := res.Line()
	if account == "" {
		p.out.Error("no active gcloud account, run `gcloud auth login`")
		return FailedHard(errors.New("no active gcloud account"))
	}
	p.out.Success("authenticated as %s", account)

	var outcomes []Outcome
	if !p.cfg.SkipBuild {
		if _, err := p.exec.Run(ctx, command.New("npm", "--version")); err != nil {
			return p.fail(Hard, "locate npm", err)
		}
		p.out.Success("npm found")
	}
	if p.cfg.SupabaseProjectRef != "" || p.cfg.LocalBackend {
		if _, err := p.exec.Run(ctx, command.New("supabase", "--version")); err != nil {
			outcomes = append(outcomes, p.fail(Soft, "locate supabase CLI", err))
		} else {
			p.out.Success("supabase CLI found")
		}
	}
	return combine(outcomes...)
}

func (p *Provisioner) ensureProject(ctx context.Context, _ Facts) Outcome {
	project, err := p.projects.FindProject(ctx, p.cfg.ProjectID)
	switch {
	case err == nil:
		if project.Number != "" {
			p.out.Success("project %s already exists (number %s)", p.cfg.ProjectID, project.Number)
		} else {
			p.out.Success("project %s already exists", p.cfg.ProjectID)
		}
	default:
		if !errors.Is(err, gcloud.ErrProjectNotFound) {
			p.logger.Warn().Err(err).Msg("project lookup failed, attempting create")
		}
		create := p.cli.Global("projects", "create", p.cfg.ProjectID, "--name="+p.cfg.AppName, "--quiet")
		if _, err := p.exec.Run(ctx, create); err != nil && !gcloud.IsAlreadyExists(err) {
			return p.fail(Hard, fmt.Sprintf("create project %s", p.cfg.ProjectID), err)
		}
		p.out.Success("project %s created", p.cfg.ProjectID)
		p.note("Link a billing account: gcloud billing projects link %s --billing-account=<ACCOUNT_ID>", p.cfg.ProjectID)
	}

	if _, err := p.exec.Run(ctx, p.cli.Global("config", "set", "project", p.cfg.ProjectID)); err != nil {
		return p.fail(Hard, "select project", err)
	}
	return Succeeded()
}

func (p *Provisioner) enableAPIs(ctx context.Context, _ Facts) Outcome {
	args := append([]string{"services", "enable"}, requiredAPIs...)
	enable := p.cli.Cmd(args...)
	if _, err := p.exec.Run(ctx, enable); err != nil {
		return p.fail(Soft, "enable APIs", err)
	}
	p.out.Success("enabled %d APIs", len(requiredAPIs))

	if wait := p.cfg.APIEnableWait; wait > 0 {
		p.out.Info("waiting %s for API enablement to propagate", wait)
		if err := p.sleep(ctx, wait); err != nil {
			return FailedHard(fmt.Errorf("wait for API propagation: %w", err))
		}
	}
	return Succeeded()
}

func (p *Provisioner) ensureAppEngine(ctx context.Context, _ Facts) Outcome {
	return p.Ensure(ctx, Resource{
		Kind:        "App Engine application",
		Name:        p.cfg.ProjectID,
		Describe:    p.cli.Cmd("app", "describe", "--format=value(id)"),
		Create:      []command.Command{p.cli.Cmd("app", "create", "--region="+appEngineRegion(p.cfg.Region))},
		Criticality: Hard,
	})
}

// appEngineRegion maps a Compute region to the App Engine location id; the two
// oldest App Engine regions drop the trailing digit.
func appEngineRegion(region string) string {
	switch region {
	case "us-central1", "europe-west1":
		return strings.TrimSuffix(region, "1")
	default:
		return region
	}
}
