package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/journai/journai-ops/internal/artifact"
	"github.com/journai/journai-ops/internal/config"
)

// DefaultSummaryFile is written next to the project after a completed run.
const DefaultSummaryFile = "deployment-summary.txt"

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#3b82f6")).
	Padding(0, 1)

// Summary is the operator-facing account of a completed run.
type Summary struct {
	cfg    config.ProvisioningConfig
	report Report
	notes  []string
}

// NewSummary builds a summary; notes are follow-up hints gathered by the steps.
func NewSummary(cfg config.ProvisioningConfig, report Report, notes []string) Summary {
	return Summary{cfg: cfg, report: report, notes: notes}
}

// Features lists what the run set up.
func (s Summary) Features() []string {
	features := []string{
		"App Engine hosting (" + s.cfg.Region + ")",
		"Cloud SQL PostgreSQL instance " + s.cfg.DBInstanceName,
		"Secret Manager secrets for database and backend credentials",
	}
	switch {
	case s.cfg.SupabaseProjectRef != "":
		features = append(features, "Hosted backend project "+s.cfg.SupabaseProjectRef)
	case s.cfg.LocalBackend:
		features = append(features, "Local backend stack")
	}
	if s.cfg.Domain != "" {
		features = append(features, "Custom domain "+s.cfg.Domain+" behind an HTTPS load balancer")
	}
	features = append(features, "Error log metric and alert policy")
	if s.cfg.AdminEmail != "" {
		features = append(features, "Email alerts to "+s.cfg.AdminEmail)
	}
	if s.cfg.EnableAdminConsole {
		features = append(features, "Admin console")
	}
	return features
}

// NextSteps lists manual actions left for the operator.
func (s Summary) NextSteps() []string {
	steps := append([]string(nil), s.notes...)
	for _, failure := range s.report.SoftFailures() {
		steps = append(steps, fmt.Sprintf("Re-run or fix %q: %s", failure.Name, failure.Reason))
	}
	if s.report.AppURL != "" {
		steps = append(steps, "Verify the deployment: JOURNAI_APP_URL="+s.report.AppURL+" journai-health")
	}
	return steps
}

// Text renders the summary as plain text.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, "Journai deployment summary")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Run ID:      %s\n", s.report.RunID)
	fmt.Fprintf(&b, "Finished:    %s\n", s.report.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Project:     %s\n", s.cfg.ProjectID)
	fmt.Fprintf(&b, "Environment: %s\n", s.cfg.Environment)
	fmt.Fprintf(&b, "Database:    %s (%s/%s)\n", s.cfg.ConnectionName(), s.cfg.DBName, s.cfg.DBUser)
	if s.report.AppURL != "" {
		fmt.Fprintf(&b, "URL:         %s\n", s.report.AppURL)
	}
	if s.cfg.Domain != "" {
		fmt.Fprintf(&b, "Domain:      https://%s\n", s.cfg.Domain)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Enabled:")
	for _, feature := range s.Features() {
		fmt.Fprintf(&b, "  - %s\n", feature)
	}

	if failures := s.report.SoftFailures(); len(failures) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Completed with warnings:")
		for _, failure := range failures {
			fmt.Fprintf(&b, "  - %s: %s\n", failure.Name, failure.Reason)
		}
	}

	if next := s.NextSteps(); len(next) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Next steps:")
		for i, step := range next {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}
	return b.String()
}

// Render returns the summary framed for the terminal.
func (s Summary) Render() string {
	return boxStyle.Render(strings.TrimRight(s.Text(), "\n"))
}

// Write stores the plain-text summary through w.
func (s Summary) Write(ctx context.Context, w *artifact.Writer, name string) (string, error) {
	if name == "" {
		name = DefaultSummaryFile
	}
	return w.WriteFile(ctx, name, []byte(s.Text()), artifact.PublicMode)
}
