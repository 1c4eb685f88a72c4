// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionTokenBytes is the number of random bytes in a token (64 hex chars).
const SessionTokenBytes = 32

// DefaultSessionExtension is the sliding expiration increment.
const DefaultSessionExtension = 30 * time.Minute

// AccountSnapshot is the account data captured into a session at creation,
// so later checks never need to re-read the account.
type AccountSnapshot struct {
	AccountID int64
	UserName  string
	CompanyID *int64
	Role      Role
}

// Session is a server-side login session.
// LogoutAt is the expiry instant, not the time a logout was requested.
type Session struct {
	ID        ulid.ULID
	TokenHash string
	AccountID int64
	UserName  string
	CompanyID *int64
	Role      Role
	LogoutAt  time.Time
	CreatedAt time.Time
}

// IsLiveAt reports whether the session is still valid at t.
func (s *Session) IsLiveAt(t time.Time) bool {
	return s.LogoutAt.After(t)
}

// Info returns the caller-facing view of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		AccountID: s.AccountID,
		CompanyID: s.CompanyID,
		Role:      s.Role,
		LogoutAt:  s.LogoutAt,
	}
}

// SessionInfo is the session metadata echoed to clients.
type SessionInfo struct {
	AccountID int64
	CompanyID *int64
	Role      Role
	LogoutAt  time.Time
}

// TimeRelation selects sessions relative to a timestamp.
type TimeRelation int

// Time relations for ReadSessionsByAccountAndTime.
const (
	Before TimeRelation = iota
	After
)

// SessionStore manages session persistence.
// Implementations must provide TryCreateSession atomically using the
// store's own isolation primitives. Liveness inside the store is judged
// against the store's own clock.
type SessionStore interface {
	// TryCreateSession inserts a session for the account unless another
	// session with LogoutAt after now exists. After inserting it re-checks
	// that exactly one live session exists and reports ErrSessionRace
	// otherwise. Returns ErrSessionConflict when a live session already exists
	// and ErrSessionExpiry when logoutAt is not after the store's now.
	TryCreateSession(ctx context.Context, account AccountSnapshot, tokenHash string, logoutAt time.Time) (*Session, error)

	// ExtendSession sets LogoutAt to now plus delta for a live session.
	// Returns ErrNotFound when no live session has the token hash.
	ExtendSession(ctx context.Context, tokenHash string, delta time.Duration) error

	// ExpireSession sets LogoutAt to at, never later than its current value.
	// Returns ErrNotFound when the token hash is unknown.
	ExpireSession(ctx context.Context, tokenHash string, at time.Time) error

	// ReadSession returns the session for a token hash or ErrNotFound.
	ReadSession(ctx context.Context, tokenHash string) (*Session, error)

	// ReadSessionsByAccountAndTime returns the account's sessions whose
	// LogoutAt is before or after t.
	ReadSessionsByAccountAndTime(ctx context.Context, accountID int64, rel TimeRelation, t time.Time) ([]*Session, error)

	// DeleteExpiredSessions removes sessions whose LogoutAt is before t and
	// returns the number removed.
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
