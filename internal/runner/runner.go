package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/health"
	"github.com/journai/journai-ops/internal/healthcheck"
)

// Ticker is the minimal interface needed for driving the runner loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Checker runs one health cycle.
type Checker interface {
	Check(ctx context.Context) health.Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) health.Result

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context) health.Result { return f(ctx) }

// Runner schedules health cycles on a fixed interval.
type Runner struct {
	logger        zerolog.Logger
	pollInterval  time.Duration
	tickerFactory func(time.Duration) Ticker
	checker       Checker
	tracker       *healthcheck.Tracker
	onResult      func(health.Result)
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Runner) {
		r.tickerFactory = factory
	}
}

// WithTracker records completed cycles for the liveness endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(r *Runner) {
		r.tracker = tracker
	}
}

// WithResultHandler is called with every completed cycle result.
func WithResultHandler(fn func(health.Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// New constructs a Runner with the given logger, poll interval and checker.
func New(logger zerolog.Logger, pollInterval time.Duration, checker Checker, opts ...Option) *Runner {
	r := &Runner{
		logger:       logger.With().Str("component", "runner").Logger(),
		pollInterval: pollInterval,
		checker:      checker,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run starts the main loop and blocks until the context is canceled.
// A failing cycle is logged and the next one is still scheduled.
func (r *Runner) Run(ctx context.Context) error {
	if r.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}
	if r.checker == nil {
		return errors.New("health checker is required")
	}

	// Run immediately on startup
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error().Err(err).Msg("initial health cycle failed")
	}

	ticker := r.tickerFactory(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runner stopped")
			return nil
		case <-ticker.C():
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("health cycle failed")
			}
		}
	}
}

// CycleError reports a health cycle that panicked. The loop logs it and
// keeps scheduling cycles.
type CycleError struct {
	Started time.Time
	Value   any
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("health cycle started at %s panicked: %v", e.Started.Format(time.RFC3339), e.Value)
}

// RunOnce executes a single health cycle. A panic inside the cycle is
// recovered and returned as a *CycleError.
func (r *Runner) RunOnce(ctx context.Context) (result health.Result, err error) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &CycleError{Started: started.UTC(), Value: recovered}
		}
	}()

	result = r.checker.Check(ctx)

	r.tracker.RecordCycle(time.Since(started), len(result.Targets), string(result.Status))
	if r.onResult != nil {
		r.onResult(result)
	}
	return result, nil
}

// Handle controls a runner started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs the loop in the background until Stop is called or ctx ends.
func (r *Runner) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = r.Run(ctx)
	}()
	return h
}

// Stop cancels the loop and waits for it to exit.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the loop error. It is only meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
