package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/metrics"
	"github.com/journai/journai-ops/internal/notify"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.AlertEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type countingProbe struct {
	name  string
	err   error
	calls int
}

func (p *countingProbe) Name() string { return p.name }

func (p *countingProbe) Check(context.Context) error {
	p.calls++
	return p.err
}

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func dependencyProbes(secretErr error) (*countingProbe, *countingProbe, *countingProbe) {
	return &countingProbe{name: TargetDataAPI},
		&countingProbe{name: TargetStorage},
		&countingProbe{name: TargetSecretManager, err: secretErr}
}

func TestCheckAllHealthy(t *testing.T) {
	server := statusServer(t, http.StatusOK)
	alerts := &recordingNotifier{}
	dataAPI, storage, secrets := dependencyProbes(nil)

	checker := NewChecker(zerolog.Nop(), alerts,
		WithPrimary(NewHTTPProbe(TargetApplication, server.URL, WithTimeout(time.Second)), StubDatabaseProbe{}),
		WithDependencies(dataAPI, storage, secrets),
	)

	result := checker.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s (%+v)", result.Status, result.Targets)
	}
	if len(alerts.events) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerts.events))
	}
	if len(result.Targets) != 5 {
		t.Fatalf("expected 5 targets, got %d", len(result.Targets))
	}
	if result.ID == "" || result.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", result)
	}
	if ExitCode(result) != 0 {
		t.Fatalf("expected exit code 0")
	}
}

func TestCheckApplicationFailureIsUnhealthy(t *testing.T) {
	server := statusServer(t, http.StatusInternalServerError)
	alerts := &recordingNotifier{}
	dataAPI, storage, secrets := dependencyProbes(nil)

	checker := NewChecker(zerolog.Nop(), alerts,
		WithPrimary(NewHTTPProbe(TargetApplication, server.URL, WithTimeout(time.Second)), StubDatabaseProbe{}),
		WithDependencies(dataAPI, storage, secrets),
	)

	result := checker.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", result.Status)
	}
	if len(alerts.events) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts.events))
	}
	event := alerts.events[0]
	if event.Target != TargetApplication || event.Severity != notify.SeverityCritical {
		t.Fatalf("unexpected alert: %+v", event)
	}
	if !strings.Contains(event.Message, "Application health check failed") || !strings.Contains(event.Message, "500") {
		t.Fatalf("unexpected alert message: %q", event.Message)
	}
	if event.CheckID != result.ID {
		t.Fatalf("expected alert to carry check id %s, got %s", result.ID, event.CheckID)
	}
	if ExitCode(result) != 1 {
		t.Fatalf("expected exit code 1")
	}
}

func TestCheckDependencyFailureIsDegraded(t *testing.T) {
	server := statusServer(t, http.StatusOK)
	alerts := &recordingNotifier{}
	dataAPI, storage, secrets := dependencyProbes(errors.New("PERMISSION_DENIED"))
	// Ordering the failing probe first shows the rest still run.
	checker := NewChecker(zerolog.Nop(), alerts,
		WithPrimary(NewHTTPProbe(TargetApplication, server.URL, WithTimeout(time.Second)), StubDatabaseProbe{}),
		WithDependencies(secrets, dataAPI, storage),
	)

	result := checker.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", result.Status)
	}
	if len(alerts.events) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts.events))
	}
	if alerts.events[0].Target != TargetSecretManager || alerts.events[0].Severity != notify.SeverityWarning {
		t.Fatalf("unexpected alert: %+v", alerts.events[0])
	}
	if dataAPI.calls != 1 || storage.calls != 1 || secrets.calls != 1 {
		t.Fatalf("expected every dependency probe to run once, got %d %d %d", dataAPI.calls, storage.calls, secrets.calls)
	}
	if result.Targets[TargetDataAPI].Status != StatusHealthy || result.Targets[TargetStorage].Status != StatusHealthy {
		t.Fatalf("expected remaining dependencies healthy, got %+v", result.Targets)
	}
	if result.Targets[TargetSecretManager].Error != "PERMISSION_DENIED" {
		t.Fatalf("expected failure detail, got %+v", result.Targets[TargetSecretManager])
	}
}

func TestCheckPanickingProbeDoesNotStopCycle(t *testing.T) {
	server := statusServer(t, http.StatusOK)
	alerts := &recordingNotifier{}
	dataAPI, storage, secrets := dependencyProbes(nil)
	broken := NewFuncProbe(TargetDataAPI, func(context.Context) error {
		var m map[string]int
		m["boom"] = 1
		return nil
	})

	checker := NewChecker(zerolog.Nop(), alerts,
		WithPrimary(NewHTTPProbe(TargetApplication, server.URL, WithTimeout(time.Second)), StubDatabaseProbe{}),
		WithDependencies(broken, storage, secrets),
	)

	result := checker.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %q", result.Status)
	}
	if storage.calls != 1 || secrets.calls != 1 {
		t.Fatalf("expected remaining probes to run, got storage=%d secrets=%d", storage.calls, secrets.calls)
	}
	if dataAPI.calls != 0 {
		t.Fatalf("unexpected call to unused probe")
	}
	target := result.Targets[TargetDataAPI]
	if target.Status != StatusDegraded || !strings.Contains(target.Error, "panicked") {
		t.Fatalf("expected panic recorded as failure, got %+v", target)
	}
	if len(alerts.events) != 1 || alerts.events[0].Target != TargetDataAPI {
		t.Fatalf("expected one alert for the panicking target, got %+v", alerts.events)
	}
}

func TestCheckDependencyFailureDoesNotMaskUnhealthy(t *testing.T) {
	alerts := &recordingNotifier{}
	checker := NewChecker(zerolog.Nop(), alerts,
		WithDependencies(&countingProbe{name: TargetStorage, err: errors.New("gone")}),
		WithPrimary(&countingProbe{name: TargetDatabase, err: errors.New("refused")}),
	)

	result := checker.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", result.Status)
	}
	if len(alerts.events) != 2 {
		t.Fatalf("expected one alert per failure, got %d", len(alerts.events))
	}
}

func TestCheckPrimaryTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	alerts := &recordingNotifier{}
	checker := NewChecker(zerolog.Nop(), alerts,
		WithPrimary(NewHTTPProbe(TargetApplication, server.URL, WithTimeout(50*time.Millisecond))),
	)

	started := time.Now()
	result := checker.Check(context.Background())

	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("expected cycle to resolve near the timeout, took %s", elapsed)
	}
	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", result.Status)
	}
	if !strings.Contains(result.Targets[TargetApplication].Error, "timed out") {
		t.Fatalf("expected timeout error, got %q", result.Targets[TargetApplication].Error)
	}
	if len(alerts.events) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts.events))
	}
}

func TestCheckNotifierErrorDoesNotChangeStatus(t *testing.T) {
	alerts := &recordingNotifier{err: errors.New("slack down")}
	m := metrics.New()
	checker := NewChecker(zerolog.Nop(), alerts,
		WithDependencies(&countingProbe{name: TargetStorage, err: errors.New("gone")}),
		WithMetrics(m),
	)

	result := checker.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", result.Status)
	}
	if len(alerts.events) != 1 {
		t.Fatalf("expected one delivery attempt, got %d", len(alerts.events))
	}
}

func TestCheckUsesClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	checker := NewChecker(zerolog.Nop(), nil, WithClock(func() time.Time { return fixed }))

	result := checker.Check(context.Background())

	if !result.Timestamp.Equal(fixed) {
		t.Fatalf("expected timestamp %s, got %s", fixed, result.Timestamp)
	}
	if result.Status != StatusHealthy {
		t.Fatalf("expected healthy with no probes, got %s", result.Status)
	}
}

func TestWorsenStatusIsMonotonic(t *testing.T) {
	cases := []struct {
		current Status
		next    Status
		want    Status
	}{
		{StatusHealthy, StatusDegraded, StatusDegraded},
		{StatusDegraded, StatusUnhealthy, StatusUnhealthy},
		{StatusUnhealthy, StatusDegraded, StatusUnhealthy},
		{StatusDegraded, StatusHealthy, StatusDegraded},
		{StatusUnhealthy, StatusHealthy, StatusUnhealthy},
	}
	for _, tc := range cases {
		if got := worsenStatus(tc.current, tc.next); got != tc.want {
			t.Fatalf("worsenStatus(%s, %s) = %s, want %s", tc.current, tc.next, got, tc.want)
		}
	}
}

func TestResultJSON(t *testing.T) {
	result := Result{
		ID:     "abc",
		Status: StatusDegraded,
		Targets: map[string]TargetStatus{
			TargetStorage: {Status: StatusDegraded, Error: "gone", Duration: 1500 * time.Millisecond},
		},
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"status":"degraded"`, `"duration_ms":1500`, `"error":"gone"`} {
		if !strings.Contains(string(encoded), want) {
			t.Fatalf("expected %s in %s", want, encoded)
		}
	}
}
