// Package command runs external command-line tools as structured invocations.
//
// Every provisioning and probe call goes through an Executor, which is the only
// boundary between this module and the real infrastructure tooling.
package command

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Command describes a single process invocation. Arguments are never joined into a
// shell string; each element is passed to the program as-is.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current process environment.
	Env   []string
	Stdin io.Reader
	// InheritOutput streams the child's stdout/stderr to the operator while still capturing them.
	InheritOutput bool
	// Redact lists values masked in String() (passwords passed as flags).
	Redact []string
}

// New is shorthand for a Command with the given program and arguments.
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Line returns the raw command line, used for matching and never for execution.
func (c Command) Line() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// String returns a log-safe rendering with redacted values masked.
func (c Command) String() string {
	line := c.Line()
	for _, secret := range c.Redact {
		if secret == "" {
			continue
		}
		line = strings.ReplaceAll(line, secret, "******")
	}
	return line
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   string
	ExitCode int
}

// Line returns the first non-empty line of stdout, trimmed.
func (r Result) Line() string {
	for _, line := range strings.Split(r.Stdout, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ExecutionError reports a process that exited non-zero or could not be started.
type ExecutionError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + firstLine(stderr)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Executor runs commands.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
