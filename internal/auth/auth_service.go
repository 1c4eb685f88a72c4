// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjmobius/mobius/pkg/errutil"
)

// User-facing login messages.
const (
	MsgLoginSuccess    = "Login success."
	MsgAuthFailed      = "Authentication failed."
	MsgBlankUserName   = "User name is blank."
	MsgInactive        = "User account is inactive."
	MsgSuspended       = "User suspended due to multiple failed login attempts."
	MsgSessionConflict = "There is another session remains from another device."
)

var tracer = otel.Tracer("github.com/pjmobius/mobius/internal/auth")

// LoginResult is the outcome of a login attempt.
// A rejected login has LoggedIn false and a Message explaining why.
type LoginResult struct {
	LoggedIn        bool
	Token           string
	Message         string
	InitialPassword bool
	Session         SessionInfo
}

// Service provides login and logout.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	hasher   Hasher
	lockout  LockoutPolicy
	settings Settings
	opts     options
}

// NewAuthService creates a new Service.
// Returns an error if any dependency is nil.
func NewAuthService(accounts AccountStore, sessions SessionStore, hasher Hasher, settings Settings, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("accounts store is required")
	}
	if sessions == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("sessions store is required")
	}
	if hasher == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("password hasher is required")
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		settings: settings.withDefaults(),
		opts:     buildOptions(opts),
	}, nil
}

// Login verifies credentials, applies the lockout policy and creates the
// account's single live session.
//
// Rejections are returned as a LoginResult with a nil error. A non-nil error
// means the store failed; the result then carries FaultMessage.
func (s *Service) Login(ctx context.Context, userName, password string) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	logger := s.opts.logger.With("user_name", userName)
	result := LoginResult{Message: MsgAuthFailed}

	if userName == "" {
		result.Message = MsgBlankUserName
		recordLogin(OutcomeBlank)
		return result, nil
	}

	accounts, err := s.accounts.FindByUserName(ctx, userName)
	if err != nil {
		return s.loginFault(ctx, span, logger, result, "find account", err)
	}

	switch len(accounts) {
	case 0:
		logger.InfoContext(ctx, "login rejected: unknown user name")
		recordLogin(OutcomeUnknownUser)
		return result, nil
	case 1:
	default:
		errutil.LogError(ctx, logger, "login rejected: duplicate user name",
			oops.Code(CodeIntegrityViolation).With("matches", len(accounts)).Errorf("user name is not unique"))
		recordLogin(OutcomeIntegrity)
		return result, nil
	}

	account := accounts[0]
	logger = logger.With("account_id", account.ID)
	span.SetAttributes(attribute.Int64("account_id", account.ID))

	if account.Status == StatusInactive {
		logger.InfoContext(ctx, "login rejected: account inactive")
		result.Message = MsgInactive
		recordLogin(OutcomeInactive)
		return result, nil
	}

	now := s.opts.now()
	state := account.LockoutState()

	if !s.hasher.Verify(password, account.UserName, account.PasswordDigest) {
		next := s.lockout.RecordFailure(state, now)
		if err := s.accounts.UpdateLoginFailure(ctx, account.ID, next); err != nil {
			return s.loginFault(ctx, span, logger, result, "record login failure", err)
		}
		if next.Status == StatusSuspended {
			logger.InfoContext(ctx, "login rejected: bad password, account suspended",
				"failed_login_count", next.FailedLoginCount)
			result.Message = MsgSuspended
			recordLogin(OutcomeSuspended)
			return result, nil
		}
		logger.InfoContext(ctx, "login rejected: bad password", "failed_login_count", next.FailedLoginCount)
		recordLogin(OutcomeBadPassword)
		return result, nil
	}

	switch {
	case account.Status == StatusSuspended:
		next := s.lockout.CheckSuspension(state, now)
		if next.Status == StatusSuspended {
			logger.InfoContext(ctx, "login rejected: account still suspended")
			result.Message = MsgSuspended
			recordLogin(OutcomeSuspended)
			return result, nil
		}
		if err := s.accounts.UpdateLoginFailure(ctx, account.ID, next); err != nil {
			return s.loginFault(ctx, span, logger, result, "lift suspension", err)
		}
		logger.InfoContext(ctx, "suspension cooldown elapsed")
	case s.lockout.NeedsReset(state):
		if err := s.accounts.UpdateLoginFailure(ctx, account.ID, s.lockout.ResetOnSuccess(state)); err != nil {
			return s.loginFault(ctx, span, logger, result, "reset login failures", err)
		}
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return s.loginFault(ctx, span, logger, result, "generate session token", err)
	}

	session, err := s.sessions.TryCreateSession(ctx, account.Snapshot(), tokenHash, now.Add(s.settings.SessionExtension))
	if err != nil {
		if errors.Is(err, ErrSessionConflict) {
			if errors.Is(err, ErrSessionRace) {
				errutil.LogError(ctx, logger, "login rejected: concurrent session created",
					oops.Code(CodeIntegrityViolation).Wrap(err))
			} else {
				logger.WarnContext(ctx, "login rejected: another live session exists")
			}
			result.Message = MsgSessionConflict
			recordLogin(OutcomeSessionConflict)
			recordSessionOp("create", "conflict")
			return result, nil
		}
		return s.loginFault(ctx, span, logger, result, "create session", err)
	}

	recordLogin(OutcomeSuccess)
	recordSessionOp("create", "ok")
	logger.InfoContext(ctx, "login succeeded", "session_id", session.ID.String())

	result.LoggedIn = true
	result.Token = token
	result.Message = MsgLoginSuccess
	result.InitialPassword = account.InitialPassword
	result.Session = session.Info()
	return result, nil
}

func (s *Service) loginFault(ctx context.Context, span trace.Span, logger *slog.Logger, result LoginResult, operation string, err error) (LoginResult, error) {
	wrapped := oops.Code(CodeLoginFailed).With("operation", operation).Wrap(err)
	errutil.LogError(ctx, logger, "login failed", wrapped)
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, operation)
	recordLogin(OutcomeError)

	result.LoggedIn = false
	result.Message = FaultMessage
	return result, wrapped
}

// Logout expires the session identified by token immediately.
// Returns false with a nil error when the token is unknown.
func (s *Service) Logout(ctx context.Context, token string) (bool, error) {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()

	if token == "" {
		return false, nil
	}

	err := s.sessions.ExpireSession(ctx, HashSessionToken(token), s.opts.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordSessionOp("logout", "not_found")
			return false, nil
		}
		wrapped := oops.Code(CodeLogoutFailed).With("operation", "expire session").Wrap(err)
		errutil.LogError(ctx, s.opts.logger, "logout failed", wrapped)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, "expire session")
		recordSessionOp("logout", "error")
		return false, wrapped
	}

	recordSessionOp("logout", "ok")
	return true, nil
}
