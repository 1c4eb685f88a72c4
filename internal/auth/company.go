// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Company is a customer organisation that owns non-super accounts.
type Company struct {
	ID            int64
	Name          string
	ContractLevel int
	Phone         string
	ZipCode       string
	Address       string
	Email         string
	CreatedBy     *int64
	CreatedAt     time.Time
}

// CompanyInput carries the fields of a company to be created.
type CompanyInput struct {
	Name          string
	ContractLevel *int
	Phone         string
	ZipCode       string
	Address       string
	Email         string
}

// NewCompany creates a validated Company ready to be stored.
func NewCompany(in CompanyInput, createdBy *int64) (*Company, error) {
	if in.Name == "" {
		return nil, oops.Code("COMPANY_INVALID_NAME").Errorf("company name cannot be empty")
	}
	if in.ContractLevel == nil {
		return nil, oops.Code("COMPANY_INVALID_CONTRACT").Errorf("contract level is required")
	}
	return &Company{
		Name:          in.Name,
		ContractLevel: *in.ContractLevel,
		Phone:         in.Phone,
		ZipCode:       in.ZipCode,
		Address:       in.Address,
		Email:         in.Email,
		CreatedBy:     createdBy,
	}, nil
}

// CompanyFilter selects companies by exact match. Nil or empty fields are
// ignored. MaxContractLevel, when set, keeps companies at or below that level.
type CompanyFilter struct {
	ID               *int64
	Name             string
	ContractLevel    *int
	MaxContractLevel *int
	Phone            string
	ZipCode          string
	Email            string
}

// IsEmpty reports whether no caller predicate is set.
// MaxContractLevel is a visibility bound, not a predicate.
func (f CompanyFilter) IsEmpty() bool {
	return f.ID == nil && f.Name == "" && f.ContractLevel == nil &&
		f.Phone == "" && f.ZipCode == "" && f.Email == ""
}

// CompanySearch selects companies by case-insensitive substring.
type CompanySearch struct {
	Name    string
	Address string
	Email   string
}

// IsEmpty reports whether no search term is set.
func (s CompanySearch) IsEmpty() bool {
	return s.Name == "" && s.Address == "" && s.Email == ""
}

// CompanyStore manages company persistence.
type CompanyStore interface {
	// Get returns a company by ID or ErrNotFound.
	Get(ctx context.Context, id int64) (*Company, error)

	// Find returns companies matching all set predicates of the filter.
	Find(ctx context.Context, filter CompanyFilter) ([]*Company, error)

	// Search returns companies whose fields contain every set term.
	Search(ctx context.Context, search CompanySearch) ([]*Company, error)

	// Create stores a new company and returns its assigned ID.
	// Returns ErrDuplicate if the name is taken.
	Create(ctx context.Context, company *Company) (int64, error)
}
