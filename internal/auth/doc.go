// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package auth implements the Mobius authentication and session lifecycle engine.
//
// # Domain Types
//
// Account, Session and Company mirror the rows owned by the persistent store.
// Accounts should be created with NewAccount, which enforces the company
// invariant for non-super roles. Sessions are only ever created by a
// SessionStore through TryCreateSession.
//
// # Policies
//
// The pure policies carry no state and never touch the store:
//   - CredentialHasher - deterministic two-pass PBKDF2 digests
//   - LockoutPolicy - failure counting and time-based suspension
//   - IsStrong - password strength predicate
//   - CanResetPassword, AuthorizeCreate, AuthorizeList - role and company rules
//
// # Services
//
// Services orchestrate the policies against the store interfaces:
//   - Service - login and logout
//   - Validator - session validity, sliding expiration, online checks
//   - AccountService - password updates, user creation, user listing
//   - CompanyService - company creation and lookup
//   - Bootstrap - first super user initialisation
//
// Every service result carries a user-safe Message. The error return is
// reserved for infrastructure faults and must never be shown to the caller
// verbatim; use FaultMessage instead.
package auth
