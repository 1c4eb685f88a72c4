// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package postgres implements the auth stores on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == pgerrcode.UniqueViolation
}

// isSerializationFailure reports whether err aborted a transaction because of
// a concurrent one.
func isSerializationFailure(err error) bool {
	switch sqlState(err) {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}

// filterBuilder accumulates AND-ed predicates with positional arguments.
type filterBuilder struct {
	clauses []string
	args    []any
}

func (b *filterBuilder) add(column, op string, value any) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, column+" "+op+" $"+strconv.Itoa(len(b.args)))
}

func (b *filterBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}
