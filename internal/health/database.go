package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StubDatabaseProbe always reports healthy. It is used when no database URL
// is configured, so no real connectivity test takes place.
type StubDatabaseProbe struct{}

// Name implements Probe.
func (StubDatabaseProbe) Name() string { return TargetDatabase }

// Check implements Probe.
func (StubDatabaseProbe) Check(context.Context) error { return nil }

type pinger interface {
	Ping(ctx context.Context) error
	Close()
}

// PostgresProbe pings the database through a small pgx pool.
type PostgresProbe struct {
	pool    pinger
	timeout time.Duration
}

// NewPostgresProbe parses dsn and prepares a lazily connecting pool. Each
// ping is bounded by timeout; zero disables the bound.
func NewPostgresProbe(ctx context.Context, dsn string, timeout time.Duration) (*PostgresProbe, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 1
	cfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	return &PostgresProbe{pool: pool, timeout: timeout}, nil
}

// Name implements Probe.
func (p *PostgresProbe) Name() string { return TargetDatabase }

// Check implements Probe.
func (p *PostgresProbe) Check(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases pooled connections.
func (p *PostgresProbe) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}
