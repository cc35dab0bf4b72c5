// Package orchestrator runs provisioning steps strictly in order and decides,
// from each step's outcome, whether the run continues.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/journai/journai-ops/internal/console"
	"github.com/journai/journai-ops/internal/metrics"
	"github.com/journai/journai-ops/internal/provision"
)

// Phase is the lifecycle position of a run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// State is the current phase plus, while running or after an abort, the step index.
type State struct {
	Phase Phase
	Step  int
}

// ErrAlreadyRan is returned when Run is called on an orchestrator that is not idle.
var ErrAlreadyRan = errors.New("orchestrator has already run")

// AbortError reports the hard failure that stopped a run.
type AbortError struct {
	StepIndex int
	StepName  string
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.StepIndex+1, e.StepName, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// StepRecord is the outcome of one executed step.
type StepRecord struct {
	Index    int
	Name     string
	Outcome  provision.OutcomeKind
	Reason   string
	Duration time.Duration
}

// Report describes a finished or aborted run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	AppURL     string
	Steps      []StepRecord
}

// SoftFailures returns the steps that finished with a soft failure.
func (r Report) SoftFailures() []StepRecord {
	var out []StepRecord
	for _, step := range r.Steps {
		if step.Outcome == provision.KindFailedSoft {
			out = append(out, step)
		}
	}
	return out
}

// Orchestrator executes a step list once.
type Orchestrator struct {
	logger  zerolog.Logger
	out     *console.Printer
	now     func() time.Time
	newID   func() string
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state State
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunID overrides run id generation.
func WithRunID(newID func() string) Option {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithMetrics records every executed step in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New constructs an idle Orchestrator.
func New(logger zerolog.Logger, out *console.Printer, opts ...Option) *Orchestrator {
	if out == nil {
		out = console.Discard()
	}
	o := &Orchestrator{
		logger: logger,
		out:    out,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a snapshot of the orchestrator's lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(phase Phase, step int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = State{Phase: phase, Step: step}
}

// Run executes steps in order. A hard failure, a panicking step or a canceled
// context aborts the run and returns an *AbortError; no later step starts.
// Soft failures are recorded and the run continues. The first URL reported by a
// step is kept on the Report and handed to later steps.
func (o *Orchestrator) Run(ctx context.Context, steps []provision.Step) (Report, error) {
	o.mu.Lock()
	if o.state.Phase != PhaseIdle {
		o.mu.Unlock()
		return Report{}, ErrAlreadyRan
	}
	o.state = State{Phase: PhaseRunning}
	o.mu.Unlock()

	report := Report{
		RunID:     o.newID(),
		StartedAt: o.now(),
	}
	logger := o.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Int("steps", len(steps)).Msg("provisioning started")

	var facts provision.Facts
	for i, step := range steps {
		o.setState(PhaseRunning, i)

		if err := ctx.Err(); err != nil {
			return o.abort(logger, report, i, step.Name, err)
		}

		o.out.Step(i+1, len(steps), step.Name)
		started := o.now()
		outcome := runStep(ctx, step, facts)
		record := StepRecord{
			Index:    i,
			Name:     step.Name,
			Outcome:  outcome.Kind(),
			Reason:   outcome.Reason(),
			Duration: o.now().Sub(started),
		}
		report.Steps = append(report.Steps, record)
		o.metrics.ObserveStep(step.Name, outcome.Kind().String(), record.Duration)

		stepLogger := logger.With().
			Int("step", i+1).
			Str("name", step.Name).
			Str("outcome", outcome.Kind().String()).
			Dur("duration", record.Duration).
			Logger()

		switch outcome.Kind() {
		case provision.KindFailedHard:
			stepLogger.Error().Err(outcome.Err()).Msg("step failed, aborting")
			return o.abort(logger, report, i, step.Name, outcome.Err())
		case provision.KindFailedSoft:
			stepLogger.Warn().Str("reason", outcome.Reason()).Msg("step partially failed, continuing")
		case provision.KindSucceededWithURL:
			if url, ok := outcome.URL(); ok && report.AppURL == "" {
				report.AppURL = url
				facts.AppURL = url
			}
			stepLogger.Info().Str("url", report.AppURL).Msg("step succeeded")
		default:
			stepLogger.Info().Msg("step succeeded")
		}
	}

	report.FinishedAt = o.now()
	o.setState(PhaseCompleted, len(steps))
	logger.Info().
		Int("soft_failures", len(report.SoftFailures())).
		Str("url", report.AppURL).
		Msg("provisioning completed")
	return report, nil
}

func (o *Orchestrator) abort(logger zerolog.Logger, report Report, index int, name string, err error) (Report, error) {
	report.FinishedAt = o.now()
	o.setState(PhaseAborted, index)
	o.out.Error("aborted at step %d (%s): %v", index+1, name, err)
	logger.Error().Int("step", index+1).Str("name", name).Err(err).Msg("provisioning aborted")
	return report, &AbortError{StepIndex: index, StepName: name, Err: err}
}

// runStep converts a panic inside a step into a hard failure.
func runStep(ctx context.Context, step provision.Step, facts provision.Facts) (outcome provision.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = provision.FailedHard(fmt.Errorf("panic: %v", r))
		}
	}()
	return step.Run(ctx, facts)
}
