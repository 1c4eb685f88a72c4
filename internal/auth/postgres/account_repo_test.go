// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/pkg/errutil"
)

var accountColumnNames = []string{
	"id", "user_name", "email", "password_digest", "initial_password", "role", "company_id",
	"status", "failed_login_count", "last_failed_login_at", "created_by", "updated_by",
	"created_at", "updated_at",
}

func int64Ptr(v int64) *int64 { return &v }

func accountRows(rows ...[]any) *pgxmock.Rows {
	r := pgxmock.NewRows(accountColumnNames)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func accountRow(id int64, userName, role string, companyID *int64, status string) []any {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{
		id, userName, userName + "@example.com", "digest", false, role, companyID,
		status, 0, (*time.Time)(nil), (*int64)(nil), (*int64)(nil),
		created, created,
	}
}

func TestAccountRepository_FindByUserName(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantErr   string
	}{
		{
			name: "single match",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE user_name = \$1`).
					WithArgs("alice").
					WillReturnRows(accountRows(accountRow(1, "alice", "user", int64Ptr(5), "active")))
			},
			wantLen: 1,
		},
		{
			name: "no match",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE user_name = \$1`).
					WithArgs("alice").
					WillReturnRows(accountRows())
			},
			wantLen: 0,
		},
		{
			name: "duplicate rows are all returned",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE user_name = \$1`).
					WithArgs("alice").
					WillReturnRows(accountRows(
						accountRow(1, "alice", "user", int64Ptr(5), "active"),
						accountRow(2, "alice", "admin", int64Ptr(5), "active"),
					))
			},
			wantLen: 2,
		},
		{
			name: "unknown role in row",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE user_name = \$1`).
					WithArgs("alice").
					WillReturnRows(accountRows(accountRow(1, "alice", "owner", int64Ptr(5), "active")))
			},
			wantErr: "AUTH_INVALID_ROLE",
		},
		{
			name: "query error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts`).
					WithArgs("alice").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: "ACCOUNT_GET_BY_NAME_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			got, err := repo.FindByUserName(context.Background(), "alice")

			if tt.wantErr != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Len(t, got, tt.wantLen)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_FindByUserName_ScansFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lastFail := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	row := accountRow(7, "bob", "admin", int64Ptr(3), "suspended")
	row[8] = 4
	row[9] = &lastFail
	mock.ExpectQuery(`SELECT .+ FROM accounts`).
		WithArgs("bob").
		WillReturnRows(accountRows(row))

	repo := NewAccountRepository(mock)
	got, err := repo.FindByUserName(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, auth.RoleAdmin, a.Role)
	assert.Equal(t, auth.StatusSuspended, a.Status)
	require.NotNil(t, a.CompanyID)
	assert.Equal(t, int64(3), *a.CompanyID)
	assert.Equal(t, 4, a.FailedLoginCount)
	require.NotNil(t, a.LastFailedLoginAt)
	assert.True(t, lastFail.Equal(*a.LastFailedLoginAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Find(t *testing.T) {
	t.Run("builds predicates in order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		role := auth.RoleUser
		status := auth.StatusActive
		mock.ExpectQuery(`FROM accounts WHERE role = \$1 AND company_id = \$2 AND status = \$3 ORDER BY id`).
			WithArgs("user", int64(5), "active").
			WillReturnRows(accountRows(accountRow(1, "alice", "user", int64Ptr(5), "active")))

		repo := NewAccountRepository(mock)
		got, err := repo.Find(context.Background(), auth.AccountFilter{
			Role:      &role,
			CompanyID: int64Ptr(5),
			Status:    &status,
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty filter", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewAccountRepository(mock)
		_, err = repo.Find(context.Background(), auth.AccountFilter{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ACCOUNT_FILTER_EMPTY")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Create(t *testing.T) {
	newAccount := func(t *testing.T) *auth.Account {
		t.Helper()
		a, err := auth.NewAccount("carol", "carol@example.com", "digest", auth.RoleUser, int64Ptr(5), auth.StatusActive, true, int64Ptr(1))
		require.NoError(t, err)
		return a
	}

	t.Run("returns assigned id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("carol", "carol@example.com", "digest", true, "user", int64Ptr(5), "active", 0,
				pgxmock.AnyArg(), int64Ptr(1), int64Ptr(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		repo := NewAccountRepository(mock)
		id, err := repo.Create(context.Background(), newAccount(t))
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to ErrDuplicate", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs(anyArgs(11)...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		repo := NewAccountRepository(mock)
		_, err = repo.Create(context.Background(), newAccount(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicate)
		errutil.AssertErrorCode(t, err, "ACCOUNT_DUPLICATE")
	})

	t.Run("wraps other errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs(anyArgs(11)...).
			WillReturnError(errors.New("disk full"))

		repo := NewAccountRepository(mock)
		_, err = repo.Create(context.Background(), newAccount(t))
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicate)
		errutil.AssertErrorCode(t, err, "ACCOUNT_CREATE_FAILED")
	})
}

func TestAccountRepository_UpdateLoginFailure(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	state := auth.LockoutState{FailedLoginCount: 3, LastFailedLoginAt: &now, Status: auth.StatusSuspended}

	t.Run("updates row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts\s+SET failed_login_count = \$2, last_failed_login_at = \$3, status = \$4`).
			WithArgs(int64(9), 3, &now, "suspended").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.UpdateLoginFailure(context.Background(), 9, state))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(anyArgs(4)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewAccountRepository(mock)
		err = repo.UpdateLoginFailure(context.Background(), 9, state)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SET password_digest = \$2, initial_password = FALSE, updated_by = \$3`).
		WithArgs(int64(9), "newdigest", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewAccountRepository(mock)
	require.NoError(t, repo.UpdatePassword(context.Background(), 9, "newdigest", 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CountByRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE role = \$1`).
		WithArgs("super").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	repo := NewAccountRepository(mock)
	n, err := repo.CountByRole(context.Background(), auth.RoleSuper)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
