// Package prompt collects configuration values from an operator at a terminal.
package prompt

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/journai/journai-ops/internal/config"
)

// ErrAborted is returned when the operator cancels a form.
var ErrAborted = errors.New("prompt aborted by user")

// Huh asks questions with charmbracelet/huh forms.
type Huh struct {
	accessible bool
}

// Option customizes a Huh prompter.
type Option func(*Huh)

// WithAccessible switches forms to plain line-based input for screen readers.
func WithAccessible(enabled bool) Option {
	return func(h *Huh) {
		h.accessible = enabled
	}
}

// NewHuh returns a Prompter backed by huh forms.
func NewHuh(opts ...Option) *Huh {
	h := &Huh{accessible: os.Getenv("ACCESSIBLE") != ""}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ask renders q as an input or, when q.Options is set, a selection.
func (h *Huh) Ask(ctx context.Context, q config.Question) (string, error) {
	value := q.Default

	var field huh.Field
	if len(q.Options) > 0 {
		field = huh.NewSelect[string]().
			Title(q.Title).
			Description(q.Description).
			Options(huh.NewOptions(q.Options...)...).
			Value(&value)
	} else {
		field = huh.NewInput().
			Title(q.Title).
			Description(q.Description).
			Placeholder(q.Placeholder).
			Value(&value).
			Validate(questionValidator(q))
	}

	if err := h.run(ctx, field); err != nil {
		return "", err
	}
	return value, nil
}

// Confirm asks a yes/no question.
func (h *Huh) Confirm(ctx context.Context, title, description string) (bool, error) {
	var confirmed bool
	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := h.run(ctx, field); err != nil {
		return false, err
	}
	return confirmed, nil
}

func (h *Huh) run(ctx context.Context, field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).
		WithAccessible(h.accessible).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func questionValidator(q config.Question) func(string) error {
	return func(value string) error {
		if value == "" {
			if q.Optional {
				return nil
			}
			return errors.New("a value is required")
		}
		if q.Validate != nil {
			return q.Validate(value)
		}
		return nil
	}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
