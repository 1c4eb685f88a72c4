// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/pjmobius/mobius/internal/auth"
)

const accountColumns = `id, user_name, email, password_digest, initial_password, role, company_id,
		       status, failed_login_count, last_failed_login_at, created_by, updated_by,
		       created_at, updated_at`

// AccountRepository implements auth.AccountStore using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByUserName returns every account with exactly this user name.
func (r *AccountRepository) FindByUserName(ctx context.Context, userName string) ([]*auth.Account, error) {
	accounts, err := r.query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_name = $1
		ORDER BY id
	`, userName)
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_NAME_FAILED").
			With("operation", "get accounts by user name").
			With("user_name", userName).
			Wrap(err)
	}
	return accounts, nil
}

// Find returns accounts matching every set predicate of filter.
// An empty filter is rejected rather than listing every account.
func (r *AccountRepository) Find(ctx context.Context, filter auth.AccountFilter) ([]*auth.Account, error) {
	if filter.IsEmpty() {
		return nil, oops.Code("ACCOUNT_FILTER_EMPTY").Errorf("at least one account predicate is required")
	}

	var b filterBuilder
	if filter.ID != nil {
		b.add("id", "=", *filter.ID)
	}
	if filter.UserName != "" {
		b.add("user_name", "=", filter.UserName)
	}
	if filter.Email != "" {
		b.add("email", "=", filter.Email)
	}
	if filter.Role != nil {
		b.add("role", "=", filter.Role.String())
	}
	if filter.CompanyID != nil {
		b.add("company_id", "=", *filter.CompanyID)
	}
	if filter.Status != nil {
		b.add("status", "=", string(*filter.Status))
	}

	accounts, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts`+b.where()+` ORDER BY id`, b.args...)
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "find accounts").
			With("predicates", len(b.args)).
			Wrap(err)
	}
	return accounts, nil
}

// Create stores a new account and returns its assigned ID.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (
			user_name, email, password_digest, initial_password, role, company_id,
			status, failed_login_count, last_failed_login_at, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		account.UserName,
		account.Email,
		account.PasswordDigest,
		account.InitialPassword,
		account.Role.String(),
		account.CompanyID,
		string(account.Status),
		account.FailedLoginCount,
		account.LastFailedLoginAt,
		account.CreatedBy,
		account.UpdatedBy,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, oops.Code("ACCOUNT_DUPLICATE").
				With("user_name", account.UserName).
				Wrap(auth.ErrDuplicate)
		}
		return 0, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("user_name", account.UserName).
			Wrap(err)
	}
	return id, nil
}

// UpdateLoginFailure persists the lockout bookkeeping for an account.
func (r *AccountRepository) UpdateLoginFailure(ctx context.Context, id int64, state auth.LockoutState) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET failed_login_count = $2, last_failed_login_at = $3, status = $4, updated_at = NOW()
		WHERE id = $1
	`, id, state.FailedLoginCount, state.LastFailedLoginAt, string(state.Status))
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_LOGIN_FAILURE_FAILED").
			With("operation", "update login failure").
			With("account_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the digest and clears the initial password flag.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, digest string, updatedBy int64) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET password_digest = $2, initial_password = FALSE, updated_by = $3, updated_at = NOW()
		WHERE id = $1
	`, id, digest, updatedBy)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("account_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// CountByRole returns the number of accounts holding role.
func (r *AccountRepository) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, role.String()).Scan(&count)
	if err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").
			With("operation", "count accounts by role").
			With("role", role.String()).
			Wrap(err)
	}
	return count, nil
}

func (r *AccountRepository) query(ctx context.Context, sql string, args ...any) ([]*auth.Account, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_ROWS_ERROR").
			With("operation", "iterate account rows").
			Wrap(err)
	}
	return accounts, nil
}

func scanAccount(row scanner) (*auth.Account, error) {
	var (
		a         auth.Account
		role      string
		status    string
		lastFail  *time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&a.ID, &a.UserName, &a.Email, &a.PasswordDigest, &a.InitialPassword, &role,
		&a.CompanyID, &status, &a.FailedLoginCount, &lastFail, &a.CreatedBy, &a.UpdatedBy,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account row").
			Wrap(err)
	}

	a.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").With("account_id", a.ID).Wrap(err)
	}
	a.Status, err = auth.ParseStatus(status)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_STATUS").With("account_id", a.ID).Wrap(err)
	}
	if lastFail != nil {
		t := lastFail.UTC()
		a.LastFailedLoginAt = &t
	}
	a.CreatedAt = createdAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	return &a, nil
}

// Compile-time interface check.
var _ auth.AccountStore = (*AccountRepository)(nil)
