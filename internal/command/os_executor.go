package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

const spawnFailureExitCode = -1

// OSExecutor runs commands as child processes of the current process.
// It enforces no timeout of its own; cancel ctx to stop a child.
type OSExecutor struct {
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

// Option customizes OSExecutor.
type Option func(*OSExecutor)

// WithOutput overrides where inherited output is streamed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *OSExecutor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// NewOSExecutor returns an executor backed by os/exec.
func NewOSExecutor(logger zerolog.Logger, opts ...Option) *OSExecutor {
	e := &OSExecutor{
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run implements Executor.
func (e *OSExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	// #nosec G204 -- program and arguments come from structured Commands built in this module.
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Stdin != nil {
		proc.Stdin = cmd.Stdin
	}

	var stdout, stderr bytes.Buffer
	if cmd.InheritOutput {
		proc.Stdout = io.MultiWriter(&stdout, e.stdout)
		proc.Stderr = io.MultiWriter(&stderr, e.stderr)
	} else {
		proc.Stdout = &stdout
		proc.Stderr = &stderr
	}

	e.logger.Debug().Str("command", cmd.String()).Msg("running command")

	err := proc.Run()
	result := Result{Stdout: stdout.String()}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = spawnFailureExitCode
	}

	e.logger.Debug().
		Str("command", cmd.String()).
		Int("exit_code", result.ExitCode).
		Msg("command failed")

	return result, &ExecutionError{
		Command:  cmd.String(),
		ExitCode: result.ExitCode,
		Stderr:   stderr.String(),
		Err:      err,
	}
}
