package gcloud

import (
	"strings"

	"github.com/journai/journai-ops/internal/command"
)

// Binary is the CLI executable name.
const Binary = "gcloud"

// CLI builds gcloud invocations scoped to one project.
type CLI struct {
	Project string
}

// Cmd returns `gcloud <args> --project=<p> --quiet`.
func (c CLI) Cmd(args ...string) command.Command {
	full := make([]string, 0, len(args)+2)
	full = append(full, args...)
	if c.Project != "" && !hasFlag(args, "--project") {
		full = append(full, "--project="+c.Project)
	}
	if !hasFlag(args, "--quiet") {
		full = append(full, "--quiet")
	}
	return command.New(Binary, full...)
}

// Global returns a gcloud invocation without project scoping, for account and
// project-level commands.
func (c CLI) Global(args ...string) command.Command {
	return command.New(Binary, args...)
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}
	return false
}
