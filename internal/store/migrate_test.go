// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjmobius/mobius/pkg/errutil"
)

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestNewMigrator_PostgresqlScheme(t *testing.T) {
	// Connection fails, but the scheme must have been rewritten to pgx5://.
	_, err := NewMigrator("postgresql://localhost:5432/testdb")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestMigrateURL(t *testing.T) {
	for in, want := range map[string]string{
		"postgres://u:p@db:5432/mobius":   "pgx5://u:p@db:5432/mobius",
		"postgresql://u:p@db:5432/mobius": "pgx5://u:p@db:5432/mobius",
		"pgx5://u:p@db:5432/mobius":       "pgx5://u:p@db:5432/mobius",
	} {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

// fakeMigrate records calls and fails every call after Close.
type fakeMigrate struct {
	upErr, downErr, versionErr, forceErr error
	closeSourceErr, closeDBErr            error
	version                               uint
	dirty                                 bool
	closed                                bool
}

var errClosed = errors.New("migrator is closed")

func (f *fakeMigrate) Up() error {
	if f.closed {
		return errClosed
	}
	return f.upErr
}

func (f *fakeMigrate) Down() error {
	if f.closed {
		return errClosed
	}
	return f.downErr
}

func (f *fakeMigrate) Version() (uint, bool, error) {
	if f.closed {
		return 0, false, errClosed
	}
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrate) Force(int) error {
	if f.closed {
		return errClosed
	}
	return f.forceErr
}

func (f *fakeMigrate) Close() (error, error) {
	f.closed = true
	return f.closeSourceErr, f.closeDBErr
}

func TestMigrator_UpDown(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeMigrate
		run      func(*Migrator) error
		wantCode string
	}{
		{"up applies", &fakeMigrate{}, (*Migrator).Up, ""},
		{"up with nothing to do", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up fails", &fakeMigrate{upErr: errors.New("database locked")}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down rolls back", &fakeMigrate{}, (*Migrator).Down, ""},
		{"down with nothing to do", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down fails", &fakeMigrate{downErr: errors.New("constraint violation")}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	version, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, dirty)

	version, dirty, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err, "an empty database is version 0")
	assert.Zero(t, version)
	assert.False(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Force(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Force(3))
	errutil.AssertErrorCode(t, (&Migrator{m: &fakeMigrate{}}).Force(-1), "INVALID_VERSION")
	errutil.AssertErrorCode(t, (&Migrator{m: &fakeMigrate{forceErr: errors.New("bad")}}).Force(3), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Close(t *testing.T) {
	srcErr, dbErr := errors.New("source close failed"), errors.New("db close failed")
	tests := []struct {
		name      string
		fake      *fakeMigrate
		component string
	}{
		{"clean", &fakeMigrate{}, ""},
		{"source", &fakeMigrate{closeSourceErr: srcErr}, "source"},
		{"database", &fakeMigrate{closeDBErr: dbErr}, "database"},
		{"both", &fakeMigrate{closeSourceErr: srcErr, closeDBErr: dbErr}, "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.fake}).Close()
			if tt.component == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestMigrator_AppliedAndPending(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeMigrate
		applied []uint
		pending []uint
	}{
		{"fresh database", &fakeMigrate{versionErr: migrate.ErrNilVersion}, nil, []uint{1, 2, 3}},
		{"companies only", &fakeMigrate{version: 1}, []uint{1}, []uint{2, 3}},
		{"accounts applied", &fakeMigrate{version: 2}, []uint{1, 2}, []uint{3}},
		{"up to date", &fakeMigrate{version: 3}, []uint{1, 2, 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.fake}
			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)
		})
	}

	t.Run("version error", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}
		_, err := m.AppliedMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
		_, err = m.PendingMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
	})
}

func TestMigrator_CallsAfterClose(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{}}
	require.NoError(t, m.Close())

	assert.Error(t, m.Up())
	assert.Error(t, m.Down())
	assert.Error(t, m.Force(1))
	_, _, err := m.Version()
	assert.Error(t, err)
	_, err = m.PendingMigrations()
	assert.Error(t, err)
}

func TestMigrationName(t *testing.T) {
	for version, want := range map[uint]string{
		1:   "000001_companies",
		2:   "000002_accounts",
		3:   "000003_sessions",
		999: "",
	} {
		name, err := MigrationName(version)
		require.NoError(t, err)
		assert.Equal(t, want, name, "version %d", version)
	}
}

func TestCatalog_Ascending(t *testing.T) {
	all, err := catalog()
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, sv := range all {
		assert.Equal(t, uint(i+1), sv.version)
	}
}
