package health

import (
	"encoding/json"
	"time"
)

// Status is the overall or per-target health classification.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Target names reported in Result.Targets and on alerts.
const (
	TargetApplication   = "application"
	TargetDatabase      = "database"
	TargetDataAPI       = "data_api"
	TargetStorage       = "storage"
	TargetSecretManager = "secret_manager"
)

// TargetStatus is the outcome of a single probe.
type TargetStatus struct {
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON reports the duration in milliseconds.
func (t TargetStatus) MarshalJSON() ([]byte, error) {
	type alias TargetStatus
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration_ms"`
	}{alias: alias(t), DurationMS: t.Duration.Milliseconds()})
}

// Result summarizes one health cycle. Every cycle produces a fresh Result.
type Result struct {
	ID        string                  `json:"id"`
	Timestamp time.Time               `json:"timestamp"`
	Status    Status                  `json:"status"`
	Targets   map[string]TargetStatus `json:"targets"`
}

// Healthy reports whether the overall status is healthy.
func (r Result) Healthy() bool {
	return r.Status == StatusHealthy
}

// ExitCode maps a result to the single-run process exit code.
func ExitCode(r Result) int {
	if r.Healthy() {
		return 0
	}
	return 1
}

// worsenStatus only ever moves towards unhealthy.
func worsenStatus(current, next Status) Status {
	if severity(next) > severity(current) {
		return next
	}
	return current
}

func severity(status Status) int {
	switch status {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
