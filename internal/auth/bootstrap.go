// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/pjmobius/mobius/pkg/errutil"
)

// DefaultSuperEmail is stored for the bootstrap super account.
const DefaultSuperEmail = "default@default"

// BootstrapCredentials identify the system operator allowed to create the
// first super account. AdminDigest is Derive(systemPassword, AdminName).
type BootstrapCredentials struct {
	AdminName   string
	AdminDigest string
}

// Bootstrap creates the first super account.
type Bootstrap struct {
	accounts AccountStore
	hasher   Hasher
	creds    BootstrapCredentials
	opts     options
}

// NewBootstrap creates a new Bootstrap.
func NewBootstrap(accounts AccountStore, hasher Hasher, creds BootstrapCredentials, opts ...Option) (*Bootstrap, error) {
	if accounts == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("accounts store is required")
	}
	if hasher == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("password hasher is required")
	}
	if creds.AdminName == "" || creds.AdminDigest == "" {
		return nil, oops.Code(CodeConfigInvalid).Errorf("bootstrap admin name and digest are required")
	}
	return &Bootstrap{
		accounts: accounts,
		hasher:   hasher,
		creds:    creds,
		opts:     buildOptions(opts),
	}, nil
}

// InitSuperUser creates a super account when systemPassword matches the
// configured admin digest and no super account exists yet.
// Returns false with a nil error when the request is refused.
func (b *Bootstrap) InitSuperUser(ctx context.Context, systemPassword, userName, password string) (bool, error) {
	logger := b.opts.logger.With("operation", "init_super_user", "user_name", userName)

	if !b.hasher.Verify(systemPassword, b.creds.AdminName, b.creds.AdminDigest) {
		logger.InfoContext(ctx, "super user bootstrap refused: system password incorrect")
		return false, nil
	}

	count, err := b.accounts.CountByRole(ctx, RoleSuper)
	if err != nil {
		return false, b.fault(ctx, "count super accounts", err)
	}
	if count > 0 {
		logger.InfoContext(ctx, "super user bootstrap refused: super account exists", "count", count)
		return false, nil
	}

	if !IsStrong(password) {
		logger.InfoContext(ctx, "super user bootstrap refused: weak password")
		return false, nil
	}

	account, err := NewAccount(userName, DefaultSuperEmail, b.hasher.Derive(password, userName),
		RoleSuper, nil, StatusActive, false, nil)
	if err != nil {
		logger.InfoContext(ctx, "super user bootstrap refused: invalid account", "error", err.Error())
		return false, nil
	}

	id, err := b.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			logger.InfoContext(ctx, "super user bootstrap refused: user name taken")
			return false, nil
		}
		return false, b.fault(ctx, "create super account", err)
	}

	logger.InfoContext(ctx, "super user created", "account_id", id)
	return true, nil
}

func (b *Bootstrap) fault(ctx context.Context, operation string, err error) error {
	wrapped := oops.Code(CodeBootstrapFailed).With("operation", operation).Wrap(err)
	errutil.LogError(ctx, b.opts.logger, "super user bootstrap failed", wrapped)
	return wrapped
}
