package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var statuses = []string{"healthy", "degraded", "unhealthy"}

// Metrics wraps Prometheus collectors for the health monitor and the setup
// workflow. Each binary registers only the collectors it feeds.
type Metrics struct {
	registry                *prometheus.Registry
	cycleDurationSeconds    prometheus.Histogram
	targetUp                *prometheus.GaugeVec
	status                  *prometheus.GaugeVec
	alertsTotal             *prometheus.CounterVec
	alertDeliveryErrors     prometheus.Counter
	lastCompletedCycleGauge prometheus.Gauge
	stepOutcomes            *prometheus.CounterVec
	stepDurationSeconds     *prometheus.HistogramVec
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "journai_health_cycle_duration_seconds",
			Help:    "Duration of health check cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		targetUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "journai_health_target_up",
			Help: "Whether the last probe of a target succeeded (1) or failed (0).",
		}, []string{"target"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "journai_health_status",
			Help: "Overall status of the last cycle; the active status is 1.",
		}, []string{"status"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journai_health_alerts_total",
			Help: "Total alerts emitted by target and severity.",
		}, []string{"target", "severity"}),
		alertDeliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journai_health_alert_delivery_errors_total",
			Help: "Total alerts that could not be delivered to at least one sink.",
		}),
		lastCompletedCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journai_health_last_cycle_timestamp",
			Help: "Unix timestamp of the last completed cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.targetUp,
		m.status,
		m.alertsTotal,
		m.alertDeliveryErrors,
		m.lastCompletedCycleGauge,
	)

	return m
}

// NewSetup initializes a registry with the provisioning step collectors.
func NewSetup() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		stepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journai_setup_step_outcomes_total",
			Help: "Provisioning steps run, by step and outcome.",
		}, []string{"step", "outcome"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journai_setup_step_duration_seconds",
			Help:    "Duration of provisioning steps in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"step"}),
	}
	registry.MustRegister(m.stepOutcomes, m.stepDurationSeconds)
	return m
}

// ObserveStep records one finished provisioning step.
func (m *Metrics) ObserveStep(step, outcome string, duration time.Duration) {
	if m == nil || m.stepOutcomes == nil {
		return
	}
	m.stepOutcomes.WithLabelValues(step, outcome).Inc()
	m.stepDurationSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// SetTargetUp records the latest probe outcome for target.
func (m *Metrics) SetTargetUp(target string, up bool) {
	if m == nil {
		return
	}
	value := 0.0
	if up {
		value = 1
	}
	m.targetUp.WithLabelValues(target).Set(value)
}

// SetStatus marks status as the active overall status.
func (m *Metrics) SetStatus(status string) {
	if m == nil {
		return
	}
	for _, s := range statuses {
		value := 0.0
		if s == status {
			value = 1
		}
		m.status.WithLabelValues(s).Set(value)
	}
}

// IncAlertsTotal increments the alerts counter for the given target/severity.
func (m *Metrics) IncAlertsTotal(target string, severity string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(target, severity).Inc()
}

// IncAlertDeliveryErrors counts an alert that failed to reach a sink.
func (m *Metrics) IncAlertDeliveryErrors() {
	if m == nil {
		return
	}
	m.alertDeliveryErrors.Inc()
}

// SetLastCycleTimestamp sets the last completed cycle time.
func (m *Metrics) SetLastCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastCompletedCycleGauge.Set(float64(t.Unix()))
}
