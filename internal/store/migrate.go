// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// schemaVersion is one embedded NNNNNN_name.up.sql file.
type schemaVersion struct {
	version uint
	name    string
}

// catalog lists the embedded migrations in ascending version order.
var catalog = sync.OnceValues(readCatalog)

// migrateIface is the subset of *migrate.Migrate used by Migrator.
type migrateIface interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the companies, accounts and sessions schema.
type Migrator struct {
	m migrateIface
}

// NewMigrator creates a Migrator for a PostgreSQL URL.
// postgres:// and postgresql:// are rewritten to the pgx5:// scheme the
// golang-migrate driver expects.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return &Migrator{m: m}, nil
}

func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, prefix); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration. All account, company and session data is dropped.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// Returns version 0 with dirty=false if no migrations have been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use only to recover from a dirty state after fixing the database by hand.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases resources.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	return m.versionsWhere("get pending migrations", func(v, current uint) bool { return v > current })
}

// AppliedMigrations returns the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	return m.versionsWhere("get applied migrations", func(v, current uint) bool { return v <= current })
}

func (m *Migrator) versionsWhere(operation string, keep func(v, current uint) bool) ([]uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	all, err := catalog()
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}

	var out []uint
	for _, sv := range all {
		if keep(sv.version, current) {
			out = append(out, sv.version)
		}
	}
	return out, nil
}

// MigrationName returns the NNNNNN_name of a migration version, or "" when
// the version is unknown.
func MigrationName(version uint) (string, error) {
	all, err := catalog()
	if err != nil {
		return "", err
	}
	i, found := slices.BinarySearchFunc(all, version, func(sv schemaVersion, v uint) int {
		return cmp.Compare(sv.version, v)
	})
	if !found {
		return "", nil
	}
	return all[i].name, nil
}

// readCatalog parses the embedded up files. Names not shaped like
// NNNNNN_name.up.sql are skipped with a warning.
func readCatalog() ([]schemaVersion, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var all []schemaVersion
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d_", &version); err != nil {
			slog.Warn("skipping migration with unexpected file name",
				"filename", entry.Name(),
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		all = append(all, schemaVersion{version: version, name: name})
	}
	slices.SortFunc(all, func(a, b schemaVersion) int { return cmp.Compare(a.version, b.version) })
	return all, nil
}
