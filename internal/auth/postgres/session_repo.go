// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/pjmobius/mobius/internal/auth"
)

const sessionColumns = `id, token_hash, account_id, user_name, company_id, role, logout_at, created_at`

// SessionRepository implements auth.SessionStore using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// TryCreateSession inserts a session unless the account already has a live one.
//
// The check, insert and re-check run in one SERIALIZABLE transaction that
// first locks the account row, so concurrent logins for the same account
// queue behind each other. A serialization failure is reported as
// auth.ErrSessionRace. Liveness and the logoutAt check use the database
// clock.
func (r *SessionRepository) TryCreateSession(ctx context.Context, account auth.AccountSnapshot, tokenHash string, logoutAt time.Time) (*auth.Session, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, r.createFailed("begin transaction", account.AccountID, err)
	}

	session, err := r.createInTx(ctx, tx, account, tokenHash, logoutAt)
	if err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // original error takes precedence
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, r.createFailed("commit", account.AccountID, err)
	}
	return session, nil
}

func (r *SessionRepository) createInTx(ctx context.Context, tx pgx.Tx, account auth.AccountSnapshot, tokenHash string, logoutAt time.Time) (*auth.Session, error) {
	var (
		lockedID int64
		future   bool
	)
	err := tx.QueryRow(ctx, `
		SELECT id, $2::timestamptz > NOW() FROM accounts WHERE id = $1 FOR UPDATE
	`, account.AccountID, logoutAt.UTC()).Scan(&lockedID, &future)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("account_id", account.AccountID).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, r.createFailed("lock account", account.AccountID, err)
	}
	if !future {
		return nil, oops.Code("SESSION_EXPIRY_NOT_FUTURE").
			With("account_id", account.AccountID).
			With("logout_at", logoutAt).
			Wrap(auth.ErrSessionExpiry)
	}

	live, err := countLive(ctx, tx, account.AccountID)
	if err != nil {
		return nil, r.createFailed("count live sessions", account.AccountID, err)
	}
	if live > 0 {
		return nil, oops.Code("SESSION_CONFLICT").
			With("account_id", account.AccountID).
			With("live_sessions", live).
			Wrap(auth.ErrSessionConflict)
	}

	session := &auth.Session{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		AccountID: account.AccountID,
		UserName:  account.UserName,
		CompanyID: account.CompanyID,
		Role:      account.Role,
		LogoutAt:  logoutAt.UTC(),
	}
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (id, token_hash, account_id, user_name, company_id, role, logout_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`,
		session.ID.String(),
		session.TokenHash,
		session.AccountID,
		session.UserName,
		session.CompanyID,
		session.Role.String(),
		session.LogoutAt,
	).Scan(&createdAt)
	if err != nil {
		return nil, r.createFailed("insert session", account.AccountID, err)
	}
	session.CreatedAt = createdAt.UTC()

	live, err = countLive(ctx, tx, account.AccountID)
	if err != nil {
		return nil, r.createFailed("recount live sessions", account.AccountID, err)
	}
	if live != 1 {
		return nil, oops.Code("SESSION_RACE").
			With("account_id", account.AccountID).
			With("live_sessions", live).
			Wrap(auth.ErrSessionRace)
	}
	return session, nil
}

func countLive(ctx context.Context, tx pgx.Tx, accountID int64) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions WHERE account_id = $1 AND logout_at > NOW()
	`, accountID).Scan(&n)
	return n, err //nolint:wrapcheck // callers wrap with operation context
}

func (r *SessionRepository) createFailed(operation string, accountID int64, err error) error {
	if isSerializationFailure(err) {
		return oops.Code("SESSION_RACE").
			With("operation", operation).
			With("account_id", accountID).
			With("cause", err.Error()).
			Wrap(auth.ErrSessionRace)
	}
	return oops.Code("SESSION_CREATE_FAILED").
		With("operation", operation).
		With("account_id", accountID).
		Wrap(err)
}

// ExtendSession sets LogoutAt to now plus delta for a live session.
// Returns auth.ErrNotFound when no live session has the token hash, so an
// expired session is never revived.
func (r *SessionRepository) ExtendSession(ctx context.Context, tokenHash string, delta time.Duration) error {
	result, err := r.db.Exec(ctx, `
		UPDATE sessions SET logout_at = NOW() + make_interval(secs => $2)
		WHERE token_hash = $1 AND logout_at > NOW()
	`, tokenHash, delta.Seconds())
	if err != nil {
		return oops.Code("SESSION_EXTEND_FAILED").
			With("operation", "extend session").
			With("delta", delta.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// ExpireSession sets LogoutAt to at. A session that already expired earlier
// keeps its original LogoutAt.
func (r *SessionRepository) ExpireSession(ctx context.Context, tokenHash string, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE sessions SET logout_at = LEAST(logout_at, $2)
		WHERE token_hash = $1
	`, tokenHash, at.UTC())
	if err != nil {
		return oops.Code("SESSION_EXPIRE_FAILED").
			With("operation", "expire session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// ReadSession returns the session for a token hash.
func (r *SessionRepository) ReadSession(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// ReadSessionsByAccountAndTime returns the account's sessions whose LogoutAt
// is strictly before or after t.
func (r *SessionRepository) ReadSessionsByAccountAndTime(ctx context.Context, accountID int64, rel auth.TimeRelation, t time.Time) ([]*auth.Session, error) {
	op := ">"
	if rel == auth.Before {
		op = "<"
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE account_id = $1 AND logout_at `+op+` $2
		ORDER BY created_at DESC
	`, accountID, t.UTC())
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ACCOUNT_FAILED").
			With("operation", "get sessions by account").
			With("account_id", accountID).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// DeleteExpiredSessions removes sessions whose LogoutAt is before the given
// instant and returns the count.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE logout_at < $1`, before.UTC())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans one row. pgx.ErrNoRows is returned unwrapped.
func scanSession(row scanner) (*auth.Session, error) {
	var (
		idStr     string
		s         auth.Session
		role      string
		logoutAt  time.Time
		createdAt time.Time
	)
	err := row.Scan(&idStr, &s.TokenHash, &s.AccountID, &s.UserName, &s.CompanyID, &role, &logoutAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	s.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	s.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ROLE").With("id", idStr).Wrap(err)
	}
	s.LogoutAt = logoutAt.UTC()
	s.CreatedAt = createdAt.UTC()
	return &s, nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionRepository)(nil)
