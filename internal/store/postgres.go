// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package store provides the PostgreSQL connection and schema for Mobius.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
)

// ConnectOptions tune Connect.
type ConnectOptions struct {
	// Attempts is the number of connection attempts, at least 1.
	Attempts uint64
	// Backoff is the initial exponential backoff between attempts.
	Backoff time.Duration
	Logger  *slog.Logger
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Attempts == 0 {
		o.Attempts = DefaultConnectAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultConnectBackoff
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// pinger is the part of *pgxpool.Pool pinged while connecting.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool for databaseURL and pings it, retrying with
// exponential backoff while the server is unreachable. The URL is parsed once
// and a malformed URL is not retried.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitReady(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitReady pings until the database answers or the attempts run out.
func waitReady(ctx context.Context, db pinger, opts ConnectOptions) error {
	opts = opts.withDefaults()
	backoff := retry.WithMaxRetries(opts.Attempts-1, retry.NewExponential(opts.Backoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			opts.Logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
