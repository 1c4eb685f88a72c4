// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"time"
)

// Lockout configuration.
const (
	// CooldownUnit is the suspension window added per suspend cycle.
	CooldownUnit = 30 * time.Minute

	// SuspendThreshold is the failure count at which an account is suspended.
	SuspendThreshold = 3

	// MaxFailedLogins caps the recorded failure count.
	MaxFailedLogins = 10

	// freeFailures is the number of failures that never open a cooldown window.
	freeFailures = 2
)

// LockoutState is the failure bookkeeping of one account.
type LockoutState struct {
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	Status            Status
}

// LockoutPolicy computes account status from failure history.
// It is stateless; the zero value is ready to use.
type LockoutPolicy struct{}

// Cooldown returns the window during which another failure escalates the
// suspension. The first two failures never open a window.
func (LockoutPolicy) Cooldown(failedLoginCount int) time.Duration {
	return CooldownUnit * time.Duration(suspendCycles(failedLoginCount))
}

// RecordFailure applies one failed login at now.
// A missing LastFailedLoginAt is treated as now.
func (p LockoutPolicy) RecordFailure(state LockoutState, now time.Time) LockoutState {
	now = now.UTC()
	last := now
	if state.LastFailedLoginAt != nil {
		last = state.LastFailedLoginAt.UTC()
	}

	count := state.FailedLoginCount
	cycles := suspendCycles(count)
	if now.Before(last.Add(p.Cooldown(count))) || cycles < 1 {
		if count < MaxFailedLogins {
			count++
		}
	}

	next := LockoutState{
		FailedLoginCount:  count,
		LastFailedLoginAt: &now,
		Status:            StatusActive,
	}
	if count >= SuspendThreshold {
		next.Status = StatusSuspended
	}
	return next
}

// CheckSuspension decides whether a suspension is still in force at now.
// Once the cooldown has elapsed the counters are cleared and the account
// becomes active again.
func (p LockoutPolicy) CheckSuspension(state LockoutState, now time.Time) LockoutState {
	if state.LastFailedLoginAt == nil {
		return LockoutState{FailedLoginCount: state.FailedLoginCount, Status: StatusActive}
	}

	last := state.LastFailedLoginAt.UTC()
	if now.UTC().Before(last.Add(p.Cooldown(state.FailedLoginCount))) {
		return LockoutState{
			FailedLoginCount:  state.FailedLoginCount,
			LastFailedLoginAt: &last,
			Status:            StatusSuspended,
		}
	}
	return p.ResetOnSuccess(state)
}

// ResetOnSuccess returns the state after a successful login.
func (LockoutPolicy) ResetOnSuccess(LockoutState) LockoutState {
	return LockoutState{Status: StatusActive}
}

// NeedsReset reports whether a successful login must clear the counters.
func (LockoutPolicy) NeedsReset(state LockoutState) bool {
	return state.FailedLoginCount != 0 || state.LastFailedLoginAt != nil
}

func suspendCycles(failedLoginCount int) int {
	return max(failedLoginCount-freeFailures, 0)
}

// Equal reports whether two states carry the same bookkeeping.
func (s LockoutState) Equal(other LockoutState) bool {
	if s.FailedLoginCount != other.FailedLoginCount || s.Status != other.Status {
		return false
	}
	if s.LastFailedLoginAt == nil || other.LastFailedLoginAt == nil {
		return s.LastFailedLoginAt == nil && other.LastFailedLoginAt == nil
	}
	return s.LastFailedLoginAt.Equal(*other.LastFailedLoginAt)
}
