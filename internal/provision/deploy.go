package provision

import (
	"context"
	"strconv"

	"github.com/journai/journai-ops/internal/command"
)

const appDescriptor = "app.yaml"

// AppDescriptor is the App Engine standard app.yaml for the built SPA.
type AppDescriptor struct {
	Runtime      string            `yaml:"runtime"`
	EnvVariables map[string]string `yaml:"env_variables,omitempty"`
	Handlers     []Handler         `yaml:"handlers"`
}

// Handler is one app.yaml URL handler.
type Handler struct {
	URL         string `yaml:"url"`
	StaticDir   string `yaml:"static_dir,omitempty"`
	StaticFiles string `yaml:"static_files,omitempty"`
	Upload      string `yaml:"upload,omitempty"`
	Secure      string `yaml:"secure"`
}

// BuildAppDescriptor serves dist/ statically and falls back to index.html for
// client-side routes.
func BuildAppDescriptor(environment string) AppDescriptor {
	const assetPattern = `.*\.(js|css|png|jpg|jpeg|svg|ico|json|txt|webmanifest|woff2?)`
	return AppDescriptor{
		Runtime:      "nodejs20",
		EnvVariables: map[string]string{"NODE_ENV": environment},
		Handlers: []Handler{
			{URL: "/assets", StaticDir: "dist/assets", Secure: "always"},
			{URL: "/(" + assetPattern + ")$", StaticFiles: `dist/\1`, Upload: "dist/" + assetPattern + "$", Secure: "always"},
			{URL: "/.*", StaticFiles: "dist/index.html", Upload: "dist/index.html", Secure: "always"},
		},
	}
}

// envFileName follows the Vite mode convention.
func (p *Provisioner) envFileName() string {
	return ".env." + p.cfg.Environment
}

// publicURL is where the frontend will be served: the custom domain when set,
// otherwise the App Engine hostname, falling back to the legacy
// <project>.appspot.com form while the app has no hostname yet.
func (p *Provisioner) publicURL(ctx context.Context) string {
	if p.cfg.Domain != "" {
		return "https://" + p.cfg.Domain
	}
	if host := p.defaultHostname(ctx); host != "" {
		return "https://" + host
	}
	return "https://" + p.cfg.ProjectID + ".appspot.com"
}

func (p *Provisioner) defaultHostname(ctx context.Context) string {
	res, err := p.exec.Run(ctx, p.cli.Cmd("app", "describe", "--format=value(defaultHostname)"))
	if err != nil {
		p.logger.Warn().Err(err).Msg("could not resolve application hostname")
		return ""
	}
	return res.Line()
}

func (p *Provisioner) envValues(ctx context.Context) map[string]string {
	backendURL, anonKey := p.backend()
	values := map[string]string{
		"VITE_SUPABASE_URL":         backendURL,
		"VITE_SUPABASE_ANON_KEY":    anonKey,
		"VITE_APP_URL":              p.publicURL(ctx),
		"VITE_ENABLE_ADMIN_CONSOLE": strconv.FormatBool(p.cfg.EnableAdminConsole),
		"VITE_ENVIRONMENT":          p.cfg.Environment,
	}
	if p.cfg.AdminEmail != "" {
		values["VITE_ADMIN_EMAIL"] = p.cfg.AdminEmail
	}
	return values
}

func (p *Provisioner) writeEnvFile(ctx context.Context, _ Facts) Outcome {
	values := p.envValues(ctx)
	path, err := p.files.WriteEnv(ctx, p.envFileName(), values)
	if err != nil {
		return p.fail(Soft, "write environment file", err)
	}
	p.out.Success("wrote %s", path)
	if values["VITE_SUPABASE_URL"] == "" || values["VITE_SUPABASE_ANON_KEY"] == "" {
		p.out.Warning("backend URL or anon key unknown, the frontend build will not reach the data API")
		p.note("Fill VITE_SUPABASE_URL and VITE_SUPABASE_ANON_KEY in %s and redeploy", p.envFileName())
	}
	return Succeeded()
}

// buildAndDeploy builds the frontend, deploys it and resolves the public URL.
func (p *Provisioner) buildAndDeploy(ctx context.Context, _ Facts) Outcome {
	if p.cfg.SkipBuild {
		p.out.Info("build skipped")
	} else {
		for _, args := range [][]string{{"ci"}, {"run", "build", "--", "--mode", p.cfg.Environment}} {
			cmd := p.inWorkDir(command.New("npm", args...))
			cmd.InheritOutput = true
			if _, err := p.exec.Run(ctx, cmd); err != nil {
				return p.fail(Hard, "build frontend", err)
			}
		}
		p.out.Success("frontend built")
	}

	path, err := p.files.WriteYAML(ctx, appDescriptor, BuildAppDescriptor(p.cfg.Environment))
	if err != nil {
		return p.fail(Hard, "write app descriptor", err)
	}
	p.out.Success("wrote %s", path)

	deploy := p.inWorkDir(p.cli.Cmd("app", "deploy", appDescriptor))
	deploy.InheritOutput = true
	if _, err := p.exec.Run(ctx, deploy); err != nil {
		return p.fail(Hard, "deploy application", err)
	}
	p.out.Success("application deployed")

	host := p.defaultHostname(ctx)
	if host == "" {
		return Succeeded()
	}
	return SucceededWithURL("https://" + host)
}
