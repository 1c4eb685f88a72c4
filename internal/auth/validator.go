// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/pjmobius/mobius/pkg/errutil"
)

// MaxRefreshDelta bounds a caller-requested session extension.
const MaxRefreshDelta = 24 * time.Hour

// Validator checks and extends sessions.
type Validator struct {
	sessions SessionStore
	settings Settings
	opts     options
}

// NewValidator creates a new Validator.
func NewValidator(sessions SessionStore, settings Settings, opts ...Option) (*Validator, error) {
	if sessions == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("sessions store is required")
	}
	return &Validator{
		sessions: sessions,
		settings: settings.withDefaults(),
		opts:     buildOptions(opts),
	}, nil
}

// IsValid reports whether token names a live session. When extend is set a
// valid session's LogoutAt is pushed to now plus the session extension.
// Expired sessions are never extended.
func (v *Validator) IsValid(ctx context.Context, token string, extend bool) (bool, error) {
	session, err := v.live(ctx, token)
	if err != nil || session == nil {
		return false, err
	}

	if extend {
		ok, err := v.extend(ctx, session, v.settings.SessionExtension, CodeSessionValidate, "extend")
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// SessionInfo returns the stored session for token, live or not.
// Returns ErrNotFound when the token is unknown.
func (v *Validator) SessionInfo(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	session, err := v.sessions.ReadSession(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, v.fault(ctx, CodeSessionValidate, "read session", err)
	}
	return session, nil
}

// Authenticate validates and extends the session, then returns it.
// Returns ErrSessionInvalid when the session is unknown or expired.
func (v *Validator) Authenticate(ctx context.Context, token string) (*Session, error) {
	session, err := v.live(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionInvalid
	}
	ok, err := v.extend(ctx, session, v.settings.SessionExtension, CodeSessionValidate, "extend")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionInvalid
	}
	return session, nil
}

// Refresh extends a live session by a caller-chosen delta.
// Returns false when the session is not live or delta is outside
// (0, MaxRefreshDelta].
func (v *Validator) Refresh(ctx context.Context, token string, delta time.Duration) (bool, error) {
	if delta <= 0 || delta > MaxRefreshDelta {
		v.opts.logger.InfoContext(ctx, "refresh rejected: delta out of range",
			"delta", delta.String(),
			"max", MaxRefreshDelta.String())
		recordSessionOp("refresh", "invalid_delta")
		return false, nil
	}

	session, err := v.live(ctx, token)
	if err != nil || session == nil {
		return false, err
	}
	return v.extend(ctx, session, delta, CodeSessionRefresh, "refresh")
}

// IsActiveUser reports whether the account currently holds a live session.
func (v *Validator) IsActiveUser(ctx context.Context, accountID int64) (bool, error) {
	sessions, err := v.sessions.ReadSessionsByAccountAndTime(ctx, accountID, After, v.opts.now())
	if err != nil {
		return false, oops.Code(CodeSessionValidate).
			With("operation", "read live sessions").
			With("account_id", accountID).
			Wrap(err)
	}
	return len(sessions) > 0, nil
}

// live returns the session for token if it is still valid, nil otherwise.
func (v *Validator) live(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := v.sessions.ReadSession(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			v.opts.logger.InfoContext(ctx, "session rejected: not found")
			recordSessionOp("validate", "not_found")
			return nil, nil
		}
		return nil, v.fault(ctx, CodeSessionValidate, "read session", err)
	}

	if !session.IsLiveAt(v.opts.now()) {
		v.opts.logger.InfoContext(ctx, "session rejected: expired",
			"account_id", session.AccountID,
			"logout_at", session.LogoutAt)
		recordSessionOp("validate", "expired")
		return nil, nil
	}
	return session, nil
}

// extend pushes a live session's LogoutAt forward. It reports false when the
// session expired between the read and the update.
func (v *Validator) extend(ctx context.Context, session *Session, delta time.Duration, code, operation string) (bool, error) {
	err := v.sessions.ExtendSession(ctx, session.TokenHash, delta)
	if errors.Is(err, ErrNotFound) {
		v.opts.logger.InfoContext(ctx, "session rejected: expired before extension", "account_id", session.AccountID)
		recordSessionOp(operation, "expired")
		return false, nil
	}
	if err != nil {
		return false, v.fault(ctx, code, operation+" session", err)
	}
	recordSessionOp(operation, "ok")
	return true, nil
}

func (v *Validator) fault(ctx context.Context, code, operation string, err error) error {
	wrapped := oops.Code(code).With("operation", operation).Wrap(err)
	errutil.LogError(ctx, v.opts.logger, "session check failed", wrapped)
	recordSessionOp("validate", "error")
	return wrapped
}
