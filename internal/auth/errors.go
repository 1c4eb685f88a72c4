// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by stores when a unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// ErrSessionConflict is returned by TryCreateSession when another live
// session exists for the account.
var ErrSessionConflict = errors.New("another live session exists")

// ErrSessionRace is the ErrSessionConflict variant reported when the
// conflicting session only became visible after our own insert.
var ErrSessionRace = fmt.Errorf("%w: concurrent session detected after insert", ErrSessionConflict)

// ErrSessionExpiry is returned by TryCreateSession when the requested
// LogoutAt is not after the store's current time.
var ErrSessionExpiry = errors.New("session expiry is not in the future")

// ErrSessionInvalid is returned when a token is unknown or expired.
var ErrSessionInvalid = errors.New("session invalid")

// Error codes attached to oops errors raised by this package.
const (
	CodeIntegrityViolation = "AUTH_INTEGRITY_VIOLATION"
	CodeLoginFailed        = "AUTH_LOGIN_FAILED"
	CodeLogoutFailed       = "AUTH_LOGOUT_FAILED"
	CodeSessionValidate    = "SESSION_VALIDATE_FAILED"
	CodeSessionRefresh     = "SESSION_REFRESH_FAILED"
	CodeAccountOperation   = "ACCOUNT_OPERATION_FAILED"
	CodeCompanyOperation   = "COMPANY_OPERATION_FAILED"
	CodeBootstrapFailed    = "BOOTSTRAP_FAILED"
	CodeConfigInvalid      = "CONFIG_INVALID"
)

// FaultMessage is the only text callers may show for an infrastructure fault.
const FaultMessage = "Operation failed. Please contact support."
