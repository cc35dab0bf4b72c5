package provision

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/journai/journai-ops/internal/command"
)

const alertPolicyFile = ".journai/alert-policy.yaml"

// AlertPolicy is the subset of the Cloud Monitoring AlertPolicy resource written
// for `gcloud alpha monitoring policies create --policy-from-file`.
type AlertPolicy struct {
	DisplayName          string           `yaml:"displayName"`
	Combiner             string           `yaml:"combiner"`
	Enabled              bool             `yaml:"enabled"`
	Conditions           []AlertCondition `yaml:"conditions"`
	NotificationChannels []string         `yaml:"notificationChannels,omitempty"`
}

type AlertCondition struct {
	DisplayName        string             `yaml:"displayName"`
	ConditionThreshold ConditionThreshold `yaml:"conditionThreshold"`
}

type ConditionThreshold struct {
	Filter         string        `yaml:"filter"`
	Comparison     string        `yaml:"comparison"`
	ThresholdValue float64       `yaml:"thresholdValue"`
	Duration       string        `yaml:"duration"`
	Aggregations   []Aggregation `yaml:"aggregations"`
}

type Aggregation struct {
	AlignmentPeriod  string `yaml:"alignmentPeriod"`
	PerSeriesAligner string `yaml:"perSeriesAligner"`
}

// BuildAlertPolicy alerts when the error-log metric exceeds five entries in five minutes.
func BuildAlertPolicy(displayName, metricName string, channels []string) AlertPolicy {
	return AlertPolicy{
		DisplayName: displayName,
		Combiner:    "OR",
		Enabled:     true,
		Conditions: []AlertCondition{{
			DisplayName: "Application error logs",
			ConditionThreshold: ConditionThreshold{
				Filter:         fmt.Sprintf(`metric.type="logging.googleapis.com/user/%s" AND resource.type="gae_app"`, metricName),
				Comparison:     "COMPARISON_GT",
				ThresholdValue: 5,
				Duration:       "0s",
				Aggregations: []Aggregation{{
					AlignmentPeriod:  "300s",
					PerSeriesAligner: "ALIGN_SUM",
				}},
			},
		}},
		NotificationChannels: channels,
	}
}

func (p *Provisioner) configureMonitoring(ctx context.Context, facts Facts) Outcome {
	var outcomes []Outcome

	metric := p.name("errors")
	outcomes = append(outcomes, p.Ensure(ctx, Resource{
		Kind:     "log-based metric",
		Name:     metric,
		Describe: p.cli.Cmd("logging", "metrics", "describe", metric),
		Create: []command.Command{p.cli.Cmd("logging", "metrics", "create", metric,
			"--description=Error-level log entries from "+p.cfg.AppName,
			`--log-filter=resource.type="gae_app" AND severity>=ERROR`,
		)},
		Criticality: Soft,
	}))

	if facts.AppURL != "" {
		outcomes = append(outcomes, p.ensureUptimeCheck(ctx, facts.AppURL))
	} else {
		p.out.Info("application URL unknown, skipping uptime check")
	}

	var channels []string
	if p.cfg.AdminEmail != "" {
		outcome, channel := p.ensureEmailChannel(ctx)
		outcomes = append(outcomes, outcome)
		if channel != "" {
			channels = append(channels, channel)
		}
	} else {
		p.out.Info("no admin email configured, alerts will have no notification channel")
	}

	outcomes = append(outcomes, p.ensureAlertPolicy(ctx, metric, channels))
	return combine(outcomes...)
}

func (p *Provisioner) ensureUptimeCheck(ctx context.Context, appURL string) Outcome {
	parsed, err := url.Parse(appURL)
	if err != nil || parsed.Host == "" {
		return FailedSoft(fmt.Sprintf("invalid application URL %q", appURL))
	}
	name := p.name("uptime")
	return p.Ensure(ctx, Resource{
		Kind: "uptime check",
		Name: name,
		Describe: p.cli.Cmd("monitoring", "uptime", "list-configs",
			fmt.Sprintf(`--filter=displayName="%s"`, name), "--format=value(name)"),
		DescribeNeedsOutput: true,
		Create: []command.Command{p.cli.Cmd("monitoring", "uptime", "create", name,
			"--resource-type=uptime-url",
			fmt.Sprintf("--resource-labels=host=%s,project_id=%s", parsed.Host, p.cfg.ProjectID),
			"--path=/",
			"--protocol=https",
			"--period=5",
		)},
		Criticality: Soft,
	})
}

func (p *Provisioner) ensureEmailChannel(ctx context.Context) (Outcome, string) {
	display := p.cfg.AppName + " admin email"
	list := p.cli.Cmd("beta", "monitoring", "channels", "list",
		fmt.Sprintf(`--filter=displayName="%s"`, display), "--format=value(name)")

	outcome := p.Ensure(ctx, Resource{
		Kind:                "notification channel",
		Name:                p.cfg.AdminEmail,
		Describe:            list,
		DescribeNeedsOutput: true,
		Create: []command.Command{p.cli.Cmd("beta", "monitoring", "channels", "create",
			"--display-name="+display,
			"--type=email",
			"--channel-labels=email_address="+p.cfg.AdminEmail,
		)},
		Criticality: Soft,
	})
	if outcome.IsSoftFailure() {
		return outcome, ""
	}

	res, err := p.exec.Run(ctx, list)
	if err != nil {
		p.logger.Warn().Err(err).Msg("could not resolve notification channel name")
		return outcome, ""
	}
	p.note("Confirm the monitoring notification email sent to %s", p.cfg.AdminEmail)
	return outcome, res.Line()
}

func (p *Provisioner) ensureAlertPolicy(ctx context.Context, metric string, channels []string) Outcome {
	display := p.cfg.AppName + " error rate"
	policy := BuildAlertPolicy(display, metric, channels)
	path, err := p.files.WriteYAML(ctx, filepath.FromSlash(alertPolicyFile), policy)
	if err != nil {
		return p.fail(Soft, "write alert policy", err)
	}

	return p.Ensure(ctx, Resource{
		Kind: "alert policy",
		Name: display,
		Describe: p.cli.Cmd("alpha", "monitoring", "policies", "list",
			fmt.Sprintf(`--filter=displayName="%s"`, display), "--format=value(name)"),
		DescribeNeedsOutput: true,
		Create:              []command.Command{p.cli.Cmd("alpha", "monitoring", "policies", "create", "--policy-from-file="+path)},
		Criticality:         Soft,
	})
}
