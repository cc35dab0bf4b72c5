package health

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/metrics"
	"github.com/journai/journai-ops/internal/notify"
)

var targetLabels = map[string]string{
	TargetApplication:   "Application",
	TargetDatabase:      "Database",
	TargetDataAPI:       "Data API",
	TargetStorage:       "Storage",
	TargetSecretManager: "Secret Manager",
}

// Checker runs one health cycle at a time. Primary probes (application and
// database) downgrade the result to unhealthy; dependency probes downgrade it
// to degraded. Every probe runs on every cycle.
type Checker struct {
	logger       zerolog.Logger
	notifier     notify.Notifier
	primary      []Probe
	dependencies []Probe
	metrics      *metrics.Metrics
	now          func() time.Time
	newID        func() string
}

// Option customizes a Checker.
type Option func(*Checker)

// WithPrimary sets the probes whose failure makes a cycle unhealthy.
func WithPrimary(probes ...Probe) Option {
	return func(c *Checker) {
		c.primary = append(c.primary, probes...)
	}
}

// WithDependencies sets the probes whose failure makes a cycle degraded.
func WithDependencies(probes ...Probe) Option {
	return func(c *Checker) {
		c.dependencies = append(c.dependencies, probes...)
	}
}

// WithMetrics records cycle results in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithClock overrides the cycle timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// NewChecker builds a Checker that reports failures to notifier.
func NewChecker(logger zerolog.Logger, notifier notify.Notifier, opts ...Option) *Checker {
	if notifier == nil {
		notifier = notify.NewNoop(logger, "")
	}
	c := &Checker{
		logger:   logger.With().Str("component", "health").Logger(),
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs every probe once and returns the aggregated result. Probe
// failures never escape as errors; each one is turned into exactly one alert.
func (c *Checker) Check(ctx context.Context) Result {
	start := c.now()
	result := Result{
		ID:        c.newID(),
		Timestamp: start,
		Status:    StatusHealthy,
		Targets:   make(map[string]TargetStatus, len(c.primary)+len(c.dependencies)),
	}

	for _, probe := range c.primary {
		c.run(ctx, &result, probe, StatusUnhealthy, notify.SeverityCritical)
	}
	for _, probe := range c.dependencies {
		c.run(ctx, &result, probe, StatusDegraded, notify.SeverityWarning)
	}

	elapsed := c.now().Sub(start)
	c.metrics.ObserveCycleDuration(elapsed)
	c.metrics.SetStatus(string(result.Status))
	c.metrics.SetLastCycleTimestamp(c.now())

	c.logger.Info().
		Str("check_id", result.ID).
		Str("status", string(result.Status)).
		Int("targets", len(result.Targets)).
		Dur("duration", elapsed).
		Msg("health cycle complete")

	return result
}

func (c *Checker) run(ctx context.Context, result *Result, probe Probe, failStatus Status, severity notify.Severity) {
	name := probe.Name()
	started := time.Now()
	err := c.checkProbe(ctx, probe)
	target := TargetStatus{Status: StatusHealthy, Duration: time.Since(started)}

	c.metrics.SetTargetUp(name, err == nil)
	if err == nil {
		result.Targets[name] = target
		return
	}

	target.Status = failStatus
	target.Error = err.Error()
	result.Targets[name] = target
	result.Status = worsenStatus(result.Status, failStatus)

	c.alert(ctx, notify.AlertEvent{
		Message:   fmt.Sprintf("%s health check failed: %v", label(name), err),
		Severity:  severity,
		Target:    name,
		CheckID:   result.ID,
		Timestamp: result.Timestamp,
	})
}

// checkProbe runs a single probe and turns a panic into that probe's failure.
func (c *Checker) checkProbe(ctx context.Context, probe Probe) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("target", probe.Name()).
				Str("stack", string(debug.Stack())).
				Msgf("probe panicked: %v", r)
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return probe.Check(ctx)
}

func (c *Checker) alert(ctx context.Context, event notify.AlertEvent) {
	c.metrics.IncAlertsTotal(event.Target, string(event.Severity))
	if err := c.notifier.Notify(ctx, event); err != nil {
		c.metrics.IncAlertDeliveryErrors()
		c.logger.Error().Err(err).Str("target", event.Target).Msg("alert delivery failed")
	}
}

func label(target string) string {
	if l, ok := targetLabels[target]; ok {
		return l
	}
	return target
}
