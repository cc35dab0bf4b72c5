package config

import "context"

// Question describes one value to collect from an operator.
type Question struct {
	Title       string
	Description string
	Placeholder string
	Default     string
	// Options turns the question into a selection.
	Options  []string
	Optional bool
	Validate func(string) error
}

// Prompter collects missing configuration values from a human operator.
type Prompter interface {
	Ask(ctx context.Context, q Question) (string, error)
	Confirm(ctx context.Context, title, description string) (bool, error)
}
