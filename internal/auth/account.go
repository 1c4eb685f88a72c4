// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Role is an access level. Higher values outrank lower ones.
type Role int

// Roles in rank order.
const (
	RoleGuest Role = iota
	RoleUser
	RoleAdmin
	RoleSuper
)

var roleNames = map[Role]string{
	RoleGuest: "guest",
	RoleUser:  "user",
	RoleAdmin: "admin",
	RoleSuper: "super",
}

// ParseRole converts a stored or requested role name into a Role.
func ParseRole(name string) (Role, error) {
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return RoleGuest, oops.Code("AUTH_INVALID_ROLE").With("role", name).Errorf("unknown role %q", name)
}

// String returns the stored name of the role.
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

// Rank returns the numeric position of the role in the hierarchy.
func (r Role) Rank() int {
	return int(r)
}

// Outranks reports whether r is strictly above other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Status is the administrative state of an account.
type Status string

// Account statuses.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// ParseStatus validates a status name.
func ParseStatus(name string) (Status, error) {
	switch s := Status(name); s {
	case StatusActive, StatusInactive, StatusSuspended:
		return s, nil
	default:
		return "", oops.Code("AUTH_INVALID_STATUS").With("status", name).Errorf("unknown status %q", name)
	}
}

// Account is a user identity as persisted by the store.
type Account struct {
	ID                int64
	UserName          string
	Email             string
	PasswordDigest    string
	InitialPassword   bool
	Role              Role
	CompanyID         *int64
	Status            Status
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	CreatedBy         *int64
	UpdatedBy         *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAccount creates a validated Account ready to be stored.
// Non-super accounts must belong to a company.
func NewAccount(userName, email, digest string, role Role, companyID *int64, status Status, initialPassword bool, createdBy *int64) (*Account, error) {
	if userName == "" {
		return nil, oops.Code("AUTH_INVALID_USERNAME").Errorf("user name cannot be empty")
	}
	if digest == "" {
		return nil, oops.Code("AUTH_INVALID_DIGEST").Errorf("password digest cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ROLE").With("role", int(role)).Errorf("unknown role")
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	if role != RoleSuper && companyID == nil {
		return nil, oops.Code("AUTH_COMPANY_REQUIRED").
			With("role", role.String()).
			Errorf("company is required for non-super accounts")
	}

	return &Account{
		UserName:        userName,
		Email:           email,
		PasswordDigest:  digest,
		InitialPassword: initialPassword,
		Role:            role,
		CompanyID:       companyID,
		Status:          status,
		CreatedBy:       createdBy,
		UpdatedBy:       createdBy,
	}, nil
}

// LockoutState extracts the failure bookkeeping of the account.
func (a *Account) LockoutState() LockoutState {
	return LockoutState{
		FailedLoginCount:  a.FailedLoginCount,
		LastFailedLoginAt: a.LastFailedLoginAt,
		Status:            a.Status,
	}
}

// Snapshot captures the fields denormalized into a new session.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		AccountID: a.ID,
		UserName:  a.UserName,
		CompanyID: a.CompanyID,
		Role:      a.Role,
	}
}

// SameCompany reports whether both company IDs are set and equal.
func SameCompany(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

// AccountFilter selects accounts by exact match. Nil or empty fields are ignored.
type AccountFilter struct {
	ID        *int64
	UserName  string
	Email     string
	Role      *Role
	CompanyID *int64
	Status    *Status
}

// IsEmpty reports whether no predicate is set.
func (f AccountFilter) IsEmpty() bool {
	return f.ID == nil && f.UserName == "" && f.Email == "" && f.Role == nil && f.CompanyID == nil && f.Status == nil
}

// AccountStore manages account persistence.
type AccountStore interface {
	// FindByUserName returns every account with exactly this user name.
	// More than one result indicates a violated uniqueness invariant.
	FindByUserName(ctx context.Context, userName string) ([]*Account, error)

	// Find returns accounts matching all set predicates of the filter.
	Find(ctx context.Context, filter AccountFilter) ([]*Account, error)

	// Create stores a new account and returns its assigned ID.
	// Returns ErrDuplicate if the user name is taken.
	Create(ctx context.Context, account *Account) (int64, error)

	// UpdateLoginFailure persists the lockout bookkeeping for an account.
	UpdateLoginFailure(ctx context.Context, id int64, state LockoutState) error

	// UpdatePassword replaces the digest and clears the initial password flag.
	UpdatePassword(ctx context.Context, id int64, digest string, updatedBy int64) error

	// CountByRole returns the number of accounts holding role.
	CountByRole(ctx context.Context, role Role) (int, error)
}
