// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/auth/postgres"
	"github.com/pjmobius/mobius/internal/observability"
	"github.com/pjmobius/mobius/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values use their default implementations.
type Deps struct {
	// BackendFactory opens the account, company and session stores.
	// Default: store.Connect plus the postgres repositories.
	BackendFactory func(ctx context.Context, url string, logger *slog.Logger) (Backend, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// Clock returns the current time.
	// Default: time.Now in UTC
	Clock func() time.Time
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.BackendFactory == nil {
		out.BackendFactory = connectPostgres
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.Clock == nil {
		out.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &out
}

// Backend wraps the stores and the connection behind them.
type Backend interface {
	Accounts() auth.AccountStore
	Sessions() auth.SessionStore
	Companies() auth.CompanyStore
	Ping(ctx context.Context) error
	Close()
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// pgBackend serves the stores from a pgx pool.
type pgBackend struct {
	pool *pgxpool.Pool
}

func connectPostgres(ctx context.Context, url string, logger *slog.Logger) (Backend, error) {
	pool, err := store.Connect(ctx, url, store.ConnectOptions{Logger: logger})
	if err != nil {
		return nil, err //nolint:wrapcheck // store.Connect returns coded oops errors
	}
	return &pgBackend{pool: pool}, nil
}

func (b *pgBackend) Accounts() auth.AccountStore { return postgres.NewAccountRepository(b.pool) }
func (b *pgBackend) Sessions() auth.SessionStore { return postgres.NewSessionRepository(b.pool) }
func (b *pgBackend) Companies() auth.CompanyStore { return postgres.NewCompanyRepository(b.pool) }

func (b *pgBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx) //nolint:wrapcheck // readiness reports the raw ping error
}

func (b *pgBackend) Close() { b.pool.Close() }
