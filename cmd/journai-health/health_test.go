package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journai/journai-ops/internal/command/commandtest"
	"github.com/journai/journai-ops/internal/config"
	"github.com/journai/journai-ops/internal/health"
)

func monitorConfig(appURL string) config.MonitorConfig {
	return config.MonitorConfig{
		AppURL:          appURL,
		Interval:        time.Second,
		Timeout:         time.Second,
		StorageEndpoint: "https://storage.googleapis.com",
		AlertLogName:    "journai-health-alerts",
	}
}

func probeNames(probes []health.Probe) []string {
	names := make([]string, 0, len(probes))
	for _, p := range probes {
		names = append(names, p.Name())
	}
	return names
}

func TestBuildProbesMinimal(t *testing.T) {
	set, err := buildProbes(context.Background(), monitorConfig("https://journai.example"), commandtest.New(), zerolog.Nop())
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, []string{health.TargetApplication, health.TargetDatabase}, probeNames(set.primary))
	assert.Empty(t, set.dependencies)
	assert.IsType(t, health.StubDatabaseProbe{}, set.primary[1])
}

func TestBuildProbesAllDependencies(t *testing.T) {
	cfg := monitorConfig("https://journai.example")
	cfg.DatabaseURL = "postgres://journai:pw@127.0.0.1:5432/journai"
	cfg.DataAPIURL = "https://abc.supabase.co"
	cfg.DataAPIKey = "anon"
	cfg.StorageBucket = "journai-media"
	cfg.ProjectID = "journai-prod"

	set, err := buildProbes(context.Background(), cfg, commandtest.New(), zerolog.Nop())
	require.NoError(t, err)
	defer set.Close()

	assert.IsType(t, &health.PostgresProbe{}, set.primary[1])
	assert.Equal(t, []string{health.TargetDataAPI, health.TargetStorage, health.TargetSecretManager}, probeNames(set.dependencies))
	assert.IsType(t, &health.CommandProbe{}, set.dependencies[1])
	assert.Len(t, set.closers, 1)
}

func TestBuildProbesHMACStorage(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	cfg := monitorConfig("https://journai.example")
	cfg.StorageBucket = "journai-media"
	cfg.StorageHMACAccessKey = "GOOG1EXAMPLE"
	cfg.StorageHMACSecret = "secret"

	set, err := buildProbes(context.Background(), cfg, commandtest.New(), zerolog.Nop())
	require.NoError(t, err)
	defer set.Close()

	require.Len(t, set.dependencies, 1)
	assert.IsType(t, &health.S3BucketProbe{}, set.dependencies[0])
}

func TestBuildNotifierCloudLoggingNeedsProject(t *testing.T) {
	cfg := monitorConfig("https://journai.example")
	cfg.CloudLoggingAlerts = true

	_, err := buildNotifier(cfg, commandtest.New(), zerolog.Nop())
	require.Error(t, err)
}

func TestRunSingleHealthy(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer app.Close()

	cfg := monitorConfig(app.URL)
	cfg.ProjectID = "journai-prod"
	rec := commandtest.New()
	var out bytes.Buffer

	code, err := runSingle(context.Background(), cfg, rec, zerolog.Nop(), &out, true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var result health.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Contains(t, result.Targets, health.TargetSecretManager)
	assert.Equal(t, 1, rec.Count("gcloud secrets list"))
}

func TestRunSingleDegradedForwardsToCloudLogging(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer app.Close()

	cfg := monitorConfig(app.URL)
	cfg.ProjectID = "journai-prod"
	cfg.CloudLoggingAlerts = true
	rec := commandtest.New().On("gcloud secrets list", commandtest.Fail("PERMISSION_DENIED"))
	var out bytes.Buffer

	code, err := runSingle(context.Background(), cfg, rec, zerolog.Nop(), &out, false)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Overall: degraded")
	assert.Equal(t, 1, rec.Count("gcloud logging write journai-health-alerts"))
}

func TestRunSingleDryRunDoesNotForward(t *testing.T) {
	cfg := monitorConfig("http://127.0.0.1:1")
	cfg.ProjectID = "journai-prod"
	cfg.CloudLoggingAlerts = true
	cfg.DryRun = true
	rec := commandtest.New()

	code, err := runSingle(context.Background(), cfg, rec, zerolog.Nop(), &bytes.Buffer{}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Equal(t, 0, rec.Count("gcloud logging write"))
}

func TestRunMonitorStopsOnCancel(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer app.Close()

	cfg := monitorConfig(app.URL)
	cfg.HealthPort = 0
	cfg.MetricsPort = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runMonitor(ctx, cfg, commandtest.New(), zerolog.Nop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("monitor did not stop after cancel")
	}
}

func TestExitCodeError(t *testing.T) {
	err := &exitCodeError{code: 1}
	assert.Contains(t, err.Error(), "code 1")
}

func TestRootCmdHasMonitor(t *testing.T) {
	cmd := newRootCmd()
	sub, _, err := cmd.Find([]string{"monitor"})
	require.NoError(t, err)
	assert.Equal(t, "monitor", sub.Name())
	assert.NotNil(t, cmd.Flags().Lookup("json"))
	assert.NotNil(t, sub.InheritedFlags().Lookup("work-dir"), "monitor reads .env from --work-dir too")
}
