// Package commandtest provides a scripted command.Executor for tests.
package commandtest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/journai/journai-ops/internal/command"
)

// Response is the scripted outcome of a matched command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Hang blocks until the context is done.
	Hang bool
}

// OK returns a successful response with the given stdout.
func OK(stdout string) Response {
	return Response{Stdout: stdout}
}

// Fail returns a failed response with the given stderr.
func Fail(stderr string) Response {
	return Response{ExitCode: 1, Stderr: stderr}
}

type rule struct {
	prefix    string
	responses []Response
	next      int
}

// Call is a recorded invocation.
type Call struct {
	Command command.Command
	Stdin   string
}

// Recorder matches command lines by longest prefix and records every call.
// Unmatched commands succeed with empty output.
type Recorder struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// On scripts responses for commands whose line starts with prefix. With several
// responses, successive calls consume them in order and the last one repeats.
func (r *Recorder) On(prefix string, responses ...Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(responses) == 0 {
		responses = []Response{OK("")}
	}
	r.rules = append(r.rules, &rule{prefix: prefix, responses: responses})
	return r
}

// Run implements command.Executor.
func (r *Recorder) Run(ctx context.Context, cmd command.Command) (command.Result, error) {
	stdin := ""
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		stdin = string(data)
	}

	r.mu.Lock()
	r.calls = append(r.calls, Call{Command: cmd, Stdin: stdin})
	resp := r.match(cmd.Line())
	r.mu.Unlock()

	if resp.Hang {
		<-ctx.Done()
		return command.Result{ExitCode: -1}, &command.ExecutionError{
			Command:  cmd.String(),
			ExitCode: -1,
			Err:      ctx.Err(),
		}
	}

	result := command.Result{Stdout: resp.Stdout, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return result, &command.ExecutionError{
			Command:  cmd.String(),
			ExitCode: resp.ExitCode,
			Stderr:   resp.Stderr,
		}
	}
	return result, nil
}

func (r *Recorder) match(line string) Response {
	var best *rule
	for _, candidate := range r.rules {
		if !strings.HasPrefix(line, candidate.prefix) {
			continue
		}
		if best == nil || len(candidate.prefix) > len(best.prefix) {
			best = candidate
		}
	}
	if best == nil {
		return OK("")
	}
	resp := best.responses[best.next]
	if best.next < len(best.responses)-1 {
		best.next++
	}
	return resp
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0, len(r.calls))
	for _, call := range r.calls {
		lines = append(lines, call.Command.Line())
	}
	return lines
}

// Count returns how many recorded calls start with prefix.
func (r *Recorder) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if strings.HasPrefix(call.Command.Line(), prefix) {
			n++
		}
	}
	return n
}

// Index returns the position of the first call starting with prefix, or -1.
func (r *Recorder) Index(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, call := range r.calls {
		if strings.HasPrefix(call.Command.Line(), prefix) {
			return i
		}
	}
	return -1
}
