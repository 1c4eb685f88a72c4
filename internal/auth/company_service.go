// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/pjmobius/mobius/pkg/errutil"
)

// User-facing company management messages.
const (
	MsgSuperOnlyCompany      = "Only Super users can create a company."
	MsgCompanyFieldsRequired = "Company name and contract level are required."
	MsgCompanyExists         = "Company already exists."
	MsgCompanyCreated        = "Company created successfully."
	MsgCompanyNotFound       = "No company found."
	MsgCompaniesFound        = "Companies found."
	MsgCompanyNeedsFilter    = "At least one search condition must be specified."
	MsgGuestCannotCompanies  = "User has no authority to get company information."
)

// CompanyResult is the outcome of CreateCompany.
type CompanyResult struct {
	Created   bool
	CompanyID int64
	Message   string
}

// CompanyListResult is the outcome of ListCompanies and SearchCompanies.
type CompanyListResult struct {
	OK        bool
	Companies []*Company
	Message   string
}

// CompanyService manages companies on behalf of a session holder.
type CompanyService struct {
	companies CompanyStore
	validator *Validator
	opts      options
}

// NewCompanyService creates a new CompanyService.
func NewCompanyService(companies CompanyStore, validator *Validator, opts ...Option) (*CompanyService, error) {
	if companies == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("companies store is required")
	}
	if validator == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("session validator is required")
	}
	return &CompanyService{
		companies: companies,
		validator: validator,
		opts:      buildOptions(opts),
	}, nil
}

// CreateCompany stores a new company. Only super users may create companies.
func (s *CompanyService) CreateCompany(ctx context.Context, token string, in CompanyInput) (CompanyResult, error) {
	logger := s.opts.logger.With("operation", "create_company", "company_name", in.Name)

	session, rejected, err := s.authenticate(ctx, token)
	if err != nil || rejected != "" {
		return CompanyResult{Message: rejected}, err
	}
	if session.Role != RoleSuper {
		logger.InfoContext(ctx, "create company denied", "requester_role", session.Role.String())
		recordDenial("create_company")
		return CompanyResult{Message: MsgSuperOnlyCompany}, nil
	}

	createdBy := session.AccountID
	company, err := NewCompany(in, &createdBy)
	if err != nil {
		logger.InfoContext(ctx, "create company rejected: missing fields")
		return CompanyResult{Message: MsgCompanyFieldsRequired}, nil
	}

	existing, err := s.companies.Find(ctx, CompanyFilter{Name: in.Name})
	if err != nil {
		return CompanyResult{Message: FaultMessage}, s.fault(ctx, "find company", err)
	}
	if len(existing) > 0 {
		logger.InfoContext(ctx, "create company rejected: name taken")
		return CompanyResult{Message: MsgCompanyExists}, nil
	}

	id, err := s.companies.Create(ctx, company)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			logger.InfoContext(ctx, "create company rejected: name taken")
			return CompanyResult{Message: MsgCompanyExists}, nil
		}
		return CompanyResult{Message: FaultMessage}, s.fault(ctx, "create company", err)
	}

	logger.InfoContext(ctx, "company created", "company_id", id, "requester_id", session.AccountID)
	return CompanyResult{Created: true, CompanyID: id, Message: MsgCompanyCreated}, nil
}

// ListCompanies returns companies matching the filter. Non-super requesters
// only see companies whose contract level does not exceed their own
// company's level.
func (s *CompanyService) ListCompanies(ctx context.Context, token string, filter CompanyFilter) (CompanyListResult, error) {
	logger := s.opts.logger.With("operation", "list_companies")

	if filter.IsEmpty() {
		return CompanyListResult{Message: MsgCompanyNeedsFilter}, nil
	}

	session, rejected, err := s.authenticate(ctx, token)
	if err != nil || rejected != "" {
		return CompanyListResult{Message: rejected}, err
	}

	switch session.Role {
	case RoleGuest:
		logger.InfoContext(ctx, "list companies denied", "requester_role", session.Role.String())
		recordDenial("list_companies")
		return CompanyListResult{Message: MsgGuestCannotCompanies}, nil
	case RoleSuper:
	default:
		level, ok, err := s.ownLevel(ctx, session)
		if err != nil {
			return CompanyListResult{Message: FaultMessage}, s.fault(ctx, "read own company", err)
		}
		if !ok {
			errutil.LogError(ctx, logger, "list companies rejected: requester has no company",
				oops.Code(CodeIntegrityViolation).With("account_id", session.AccountID).Errorf("non-super account without company"))
			return CompanyListResult{Message: MsgCompanyNotFound}, nil
		}
		filter.MaxContractLevel = &level
	}

	companies, err := s.companies.Find(ctx, filter)
	if err != nil {
		return CompanyListResult{Message: FaultMessage}, s.fault(ctx, "find companies", err)
	}
	if len(companies) == 0 {
		logger.InfoContext(ctx, "no company matched")
		return CompanyListResult{Message: MsgCompanyNotFound}, nil
	}

	logger.DebugContext(ctx, "companies found", "count", len(companies))
	return CompanyListResult{OK: true, Companies: companies, Message: MsgCompaniesFound}, nil
}

// SearchCompanies returns companies whose name, address or email contain the
// given terms.
func (s *CompanyService) SearchCompanies(ctx context.Context, token string, search CompanySearch) (CompanyListResult, error) {
	logger := s.opts.logger.With("operation", "search_companies")

	if search.IsEmpty() {
		return CompanyListResult{Message: MsgCompanyNeedsFilter}, nil
	}

	session, rejected, err := s.authenticate(ctx, token)
	if err != nil || rejected != "" {
		return CompanyListResult{Message: rejected}, err
	}
	if session.Role == RoleGuest {
		logger.InfoContext(ctx, "search companies denied", "requester_role", session.Role.String())
		recordDenial("search_companies")
		return CompanyListResult{Message: MsgGuestCannotCompanies}, nil
	}
	if search.Email != "" {
		logger.WarnContext(ctx, "company search by email", "requester_id", session.AccountID)
	}

	companies, err := s.companies.Search(ctx, search)
	if err != nil {
		return CompanyListResult{Message: FaultMessage}, s.fault(ctx, "search companies", err)
	}
	if len(companies) == 0 {
		return CompanyListResult{Message: MsgCompanyNotFound}, nil
	}
	return CompanyListResult{OK: true, Companies: companies, Message: MsgCompaniesFound}, nil
}

func (s *CompanyService) ownLevel(ctx context.Context, session *Session) (int, bool, error) {
	if session.CompanyID == nil {
		return 0, false, nil
	}
	company, err := s.companies.Get(ctx, *session.CompanyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return company.ContractLevel, true, nil
}

func (s *CompanyService) authenticate(ctx context.Context, token string) (*Session, string, error) {
	session, err := s.validator.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return nil, MsgSessionTimeout, nil
		}
		return nil, FaultMessage, err
	}
	return session, "", nil
}

func (s *CompanyService) fault(ctx context.Context, operation string, err error) error {
	wrapped := oops.Code(CodeCompanyOperation).With("operation", operation).Wrap(err)
	errutil.LogError(ctx, s.opts.logger, "company operation failed", wrapped)
	return wrapped
}
