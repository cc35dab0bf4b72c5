package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// Monitor loop states reported by the endpoints.
const (
	MonitorStarting = "starting"
	MonitorRunning  = "running"
	MonitorStale    = "stale"
)

// Report is the body served by /healthz and /readyz. Monitor describes the
// loop itself; LastStatus is the overall status of the last health cycle and
// never changes the response code.
type Report struct {
	Monitor string `json:"monitor"`
	Snapshot
}

// HealthHandler answers 200 while cycles keep completing within twice the
// poll interval.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := monitorState(tracker, time.Now().UTC(), pollInterval)
		code := http.StatusServiceUnavailable
		if state == MonitorRunning {
			code = http.StatusOK
		}
		writeReport(w, code, Report{Monitor: state, Snapshot: tracker.Snapshot()})
	}
}

// ReadyHandler answers 200 once the first cycle has completed.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusServiceUnavailable
		state := MonitorStarting
		if tracker.Ready() {
			code = http.StatusOK
			state = MonitorRunning
		}
		writeReport(w, code, Report{Monitor: state, Snapshot: tracker.Snapshot()})
	}
}

func monitorState(tracker *Tracker, now time.Time, pollInterval time.Duration) string {
	switch {
	case !tracker.Ready():
		return MonitorStarting
	case !tracker.Healthy(now, pollInterval):
		return MonitorStale
	default:
		return MonitorRunning
	}
}

func writeReport(w http.ResponseWriter, code int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	if report.LastStatus != "" {
		w.Header().Set("X-Journai-Status", report.LastStatus)
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
