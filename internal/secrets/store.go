// Package secrets writes application secrets into Google Secret Manager.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/gcloud"
)

// Record is a named secret value. Records are never persisted locally.
type Record struct {
	Name  string
	Value string
}

// Failure describes a record that could not be stored.
type Failure struct {
	Name string
	Err  error
}

// Secret Manager admin calls share a per-project write quota, so bulk
// stores are paced.
const (
	defaultWriteInterval = 200 * time.Millisecond
	defaultWriteBurst    = 3
)

// Store creates secrets on demand and appends new versions.
type Store struct {
	exec    command.Executor
	cli     gcloud.CLI
	logger  zerolog.Logger
	limiter *rate.Limiter
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithWritePacing sets how fast StoreAll issues writes. A zero interval
// removes the limit.
func WithWritePacing(interval time.Duration, burst int) StoreOption {
	return func(s *Store) {
		if interval <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// NewStore returns a Store scoped to projectID.
func NewStore(exec command.Executor, projectID string, logger zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		exec:    exec,
		cli:     gcloud.CLI{Project: projectID},
		logger:  logger.With().Str("component", "secrets").Logger(),
		limiter: rate.NewLimiter(rate.Every(defaultWriteInterval), defaultWriteBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreSecret ensures the secret container exists, then adds value as a new version.
// The value travels on stdin and never appears on a command line.
func (s *Store) StoreSecret(ctx context.Context, name, value string) error {
	if _, err := s.exec.Run(ctx, s.cli.Cmd("secrets", "describe", name, "--format=value(name)")); err != nil {
		s.logger.Debug().Str("secret", name).Msg("secret absent, creating")
		_, createErr := s.exec.Run(ctx, s.cli.Cmd("secrets", "create", name, "--replication-policy=automatic"))
		if createErr != nil && !gcloud.IsAlreadyExists(createErr) {
			return fmt.Errorf("create secret %s: %w", name, createErr)
		}
	}

	addVersion := s.cli.Cmd("secrets", "versions", "add", name, "--data-file=-")
	addVersion.Stdin = strings.NewReader(value)
	addVersion.Redact = []string{value}
	if _, err := s.exec.Run(ctx, addVersion); err != nil {
		return fmt.Errorf("add version to secret %s: %w", name, err)
	}

	s.logger.Info().Str("secret", name).Msg("secret version stored")
	return nil
}

// StoreAll stores every record, continuing past failures, and returns the ones
// that failed. A cancelled context fails the remaining records.
func (s *Store) StoreAll(ctx context.Context, records []Record) []Failure {
	var failures []Failure
	for _, record := range records {
		if err := s.limiter.Wait(ctx); err != nil {
			failures = append(failures, Failure{Name: record.Name, Err: fmt.Errorf("store secret %s: %w", record.Name, err)})
			continue
		}
		if err := s.StoreSecret(ctx, record.Name, record.Value); err != nil {
			s.logger.Warn().
				Str("secret", record.Name).
				Str("detail", gcloud.Detail(err)).
				Msg("failed to store secret")
			failures = append(failures, Failure{Name: record.Name, Err: err})
		}
	}
	return failures
}

// GrantAccessor lets member read the secret.
func (s *Store) GrantAccessor(ctx context.Context, name, member string) error {
	_, err := s.exec.Run(ctx, s.cli.Cmd("secrets", "add-iam-policy-binding", name,
		"--member="+member,
		"--role=roles/secretmanager.secretAccessor",
	))
	if err != nil {
		return fmt.Errorf("grant accessor on secret %s: %w", name, err)
	}
	return nil
}
