package provision

import (
	"context"

	"github.com/journai/journai-ops/internal/command"
)

// configureDomain maps the custom domain onto App Engine and fronts it with a
// global HTTPS load balancer. Every piece is optional for a working deployment.
func (p *Provisioner) configureDomain(ctx context.Context, _ Facts) Outcome {
	if p.cfg.Domain == "" {
		p.out.Info("no custom domain configured, skipping")
		return Succeeded()
	}

	mapping := p.Ensure(ctx, Resource{
		Kind:     "domain mapping",
		Name:     p.cfg.Domain,
		Describe: p.cli.Cmd("app", "domain-mappings", "describe", p.cfg.Domain),
		Create: []command.Command{p.cli.Cmd("app", "domain-mappings", "create", p.cfg.Domain,
			"--certificate-management=automatic")},
		Criticality: Soft,
	})

	return combine(mapping, p.ensureHealthCheck(ctx), p.ensureLoadBalancer(ctx))
}

// ensureHealthCheck creates the HTTP health check probing the app over HTTPS.
// Serverless NEG backends cannot reference one, so it stands on its own and
// its failure does not affect the chain.
func (p *Provisioner) ensureHealthCheck(ctx context.Context) Outcome {
	hc := p.name("hc")
	return p.Ensure(ctx, Resource{
		Kind:     "health check",
		Name:     hc,
		Describe: p.cli.Cmd("compute", "health-checks", "describe", hc, "--global"),
		Create: []command.Command{p.cli.Cmd("compute", "health-checks", "create", "http", hc,
			"--global",
			"--host="+p.cfg.Domain,
			"--request-path=/",
			"--port=80",
			"--check-interval=30s",
			"--timeout=10s",
		)},
		Criticality: Soft,
	})
}

// ensureLoadBalancer builds the chain serverless NEG, backend service, URL map,
// managed certificate, HTTPS proxy, forwarding rule. Each link depends on the
// previous one, so the chain stops at the first failure.
func (p *Provisioner) ensureLoadBalancer(ctx context.Context) Outcome {
	var (
		neg     = p.name("neg")
		backend = p.name("backend")
		urlMap  = p.name("url-map")
		cert    = p.name("cert")
		proxy   = p.name("https-proxy")
		rule    = p.name("https-rule")
	)

	chain := []Resource{
		{
			Kind:     "serverless network endpoint group",
			Name:     neg,
			Describe: p.cli.Cmd("compute", "network-endpoint-groups", "describe", neg, "--region="+p.cfg.Region),
			Create: []command.Command{p.cli.Cmd("compute", "network-endpoint-groups", "create", neg,
				"--region="+p.cfg.Region,
				"--network-endpoint-type=serverless",
				"--app-engine-app",
			)},
		},
		{
			Kind:     "backend service",
			Name:     backend,
			Describe: p.cli.Cmd("compute", "backend-services", "describe", backend, "--global"),
			Create: []command.Command{
				p.cli.Cmd("compute", "backend-services", "create", backend,
					"--global",
					"--load-balancing-scheme=EXTERNAL_MANAGED",
				),
				p.cli.Cmd("compute", "backend-services", "add-backend", backend,
					"--global",
					"--network-endpoint-group="+neg,
					"--network-endpoint-group-region="+p.cfg.Region,
				),
			},
		},
		{
			Kind:     "URL map",
			Name:     urlMap,
			Describe: p.cli.Cmd("compute", "url-maps", "describe", urlMap, "--global"),
			Create: []command.Command{p.cli.Cmd("compute", "url-maps", "create", urlMap,
				"--global",
				"--default-service="+backend,
			)},
		},
		{
			Kind:     "managed SSL certificate",
			Name:     cert,
			Describe: p.cli.Cmd("compute", "ssl-certificates", "describe", cert, "--global"),
			Create: []command.Command{p.cli.Cmd("compute", "ssl-certificates", "create", cert,
				"--global",
				"--domains="+p.cfg.Domain,
			)},
		},
		{
			Kind:     "HTTPS proxy",
			Name:     proxy,
			Describe: p.cli.Cmd("compute", "target-https-proxies", "describe", proxy, "--global"),
			Create: []command.Command{p.cli.Cmd("compute", "target-https-proxies", "create", proxy,
				"--global",
				"--url-map="+urlMap,
				"--ssl-certificates="+cert,
			)},
		},
		{
			Kind:     "forwarding rule",
			Name:     rule,
			Describe: p.cli.Cmd("compute", "forwarding-rules", "describe", rule, "--global"),
			Create: []command.Command{p.cli.Cmd("compute", "forwarding-rules", "create", rule,
				"--global",
				"--load-balancing-scheme=EXTERNAL_MANAGED",
				"--target-https-proxy="+proxy,
				"--ports=443",
			)},
		},
	}

	for _, res := range chain {
		res.Criticality = Soft
		if outcome := p.Ensure(ctx, res); outcome.IsSoftFailure() {
			return outcome
		}
	}

	res, err := p.exec.Run(ctx, p.cli.Cmd("compute", "forwarding-rules", "describe", rule,
		"--global", "--format=value(IPAddress)"))
	if err == nil && res.Line() != "" {
		p.out.KeyValue("Load balancer IP", res.Line())
		p.note("Point the DNS A record for %s at %s", p.cfg.Domain, res.Line())
	}
	return Succeeded()
}
