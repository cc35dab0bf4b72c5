package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/journai/journai-ops/internal/healthcheck"
	"github.com/journai/journai-ops/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Config selects which endpoints are served and where. A zero port disables
// that endpoint; equal ports share one listener.
type Config struct {
	HealthPort   int
	MetricsPort  int
	PollInterval time.Duration
}

type endpoint struct {
	label   string
	port    int
	handler http.Handler
}

// Run serves the monitor's liveness and metrics endpoints until ctx is
// canceled, then shuts the servers down. It returns the first listen error.
func Run(ctx context.Context, logger zerolog.Logger, cfg Config, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics) error {
	endpoints := plan(cfg, tracker, metricsCollector)
	if len(endpoints) == 0 {
		return nil
	}

	listeners := make([]net.Listener, 0, len(endpoints))
	for _, ep := range endpoints {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", ep.port))
		if err != nil {
			for _, open := range listeners {
				_ = open.Close()
			}
			return fmt.Errorf("listen for %s on port %d: %w", ep.label, ep.port, err)
		}
		listeners = append(listeners, ln)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range endpoints {
		ln := listeners[i]
		g.Go(func() error {
			return serve(gctx, logger, ln, ep.handler, ep.label)
		})
	}
	return g.Wait()
}

func plan(cfg Config, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics) []endpoint {
	if cfg.HealthPort > 0 && cfg.MetricsPort > 0 && cfg.HealthPort == cfg.MetricsPort {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, tracker, cfg.PollInterval)
		registerMetricsRoute(mux, metricsCollector)
		return []endpoint{{label: "health/metrics", port: cfg.HealthPort, handler: mux}}
	}

	var endpoints []endpoint
	if cfg.HealthPort > 0 {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, tracker, cfg.PollInterval)
		endpoints = append(endpoints, endpoint{label: "health", port: cfg.HealthPort, handler: mux})
	}
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, metricsCollector)
		endpoints = append(endpoints, endpoint{label: "metrics", port: cfg.MetricsPort, handler: mux})
	}
	return endpoints
}

func registerHealthRoutes(mux *http.ServeMux, tracker *healthcheck.Tracker, pollInterval time.Duration) {
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(tracker, pollInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(tracker))
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

func serve(ctx context.Context, logger zerolog.Logger, ln net.Listener, handler http.Handler, label string) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("server", label).Str("addr", ln.Addr().String()).Msg("http server starting")
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Msg("http server failed")
			return fmt.Errorf("%s server: %w", label, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Str("server", label).Msg("http server shutdown failed")
		return fmt.Errorf("shutdown %s server: %w", label, err)
	}
	logger.Info().Str("server", label).Msg("http server stopped")
	return nil
}
