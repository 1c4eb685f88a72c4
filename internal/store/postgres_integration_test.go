// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pjmobius/mobius/internal/store"
)

// setupPostgresContainer starts PostgreSQL, applies the schema and returns a pool.
func setupPostgresContainer() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("mobius_test"),
		postgres.WithUsername("mobius"),
		postgres.WithPassword("mobius"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	_ = migrator.Close()

	pool, err := store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 3, Backoff: 100 * time.Millisecond})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup, nil
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if err != nil && errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ = Describe("Schema", Ordered, func() {
	var pool *pgxpool.Pool
	var cleanup func()

	BeforeAll(func() {
		var err error
		pool, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	It("rejects a non-super account without a company", func() {
		_, err := pool.Exec(context.Background(), `
			INSERT INTO accounts (user_name, password_digest, role, status)
			VALUES ('nocompany', 'digest', 'user', 'active')
		`)
		Expect(err).To(HaveOccurred())
		Expect(sqlState(err)).To(Equal(pgerrcode.CheckViolation))
	})

	It("accepts a super account without a company", func() {
		_, err := pool.Exec(context.Background(), `
			INSERT INTO accounts (user_name, password_digest, role, status)
			VALUES ('root', 'digest', 'super', 'active')
		`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("enforces unique user names", func() {
		_, err := pool.Exec(context.Background(), `
			INSERT INTO accounts (user_name, password_digest, role, status)
			VALUES ('root', 'digest', 'super', 'active')
		`)
		Expect(err).To(HaveOccurred())
		Expect(sqlState(err)).To(Equal(pgerrcode.UniqueViolation))
	})

	It("rejects unknown roles", func() {
		_, err := pool.Exec(context.Background(), `
			INSERT INTO accounts (user_name, password_digest, role, status)
			VALUES ('weird', 'digest', 'owner', 'active')
		`)
		Expect(err).To(HaveOccurred())
		Expect(sqlState(err)).To(Equal(pgerrcode.CheckViolation))
	})
})
