// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/pjmobius/mobius/internal/auth"
)

const companyColumns = `id, name, contract_level, phone, zip_code, address, email, created_by, created_at`

// likeEscaper escapes LIKE metacharacters so search terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CompanyRepository implements auth.CompanyStore using PostgreSQL.
type CompanyRepository struct {
	db DB
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(db DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Get retrieves a company by ID.
func (r *CompanyRepository) Get(ctx context.Context, id int64) (*auth.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)

	company, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("COMPANY_NOT_FOUND").With("company_id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("COMPANY_GET_FAILED").
			With("operation", "get company").
			With("company_id", id).
			Wrap(err)
	}
	return company, nil
}

// Find returns companies matching every set predicate of filter.
func (r *CompanyRepository) Find(ctx context.Context, filter auth.CompanyFilter) ([]*auth.Company, error) {
	var b filterBuilder
	if filter.ID != nil {
		b.add("id", "=", *filter.ID)
	}
	if filter.Name != "" {
		b.add("name", "=", filter.Name)
	}
	if filter.ContractLevel != nil {
		b.add("contract_level", "=", *filter.ContractLevel)
	}
	if filter.MaxContractLevel != nil {
		b.add("contract_level", "<=", *filter.MaxContractLevel)
	}
	if filter.Phone != "" {
		b.add("phone", "=", filter.Phone)
	}
	if filter.ZipCode != "" {
		b.add("zip_code", "=", filter.ZipCode)
	}
	if filter.Email != "" {
		b.add("email", "=", filter.Email)
	}
	if len(b.args) == 0 {
		return nil, oops.Code("COMPANY_FILTER_EMPTY").Errorf("at least one company predicate is required")
	}

	companies, err := r.query(ctx, `SELECT `+companyColumns+` FROM companies`+b.where()+` ORDER BY id`, b.args...)
	if err != nil {
		return nil, oops.Code("COMPANY_FIND_FAILED").
			With("operation", "find companies").
			Wrap(err)
	}
	return companies, nil
}

// Search returns companies whose name, address and email contain every set
// term, ignoring case.
func (r *CompanyRepository) Search(ctx context.Context, search auth.CompanySearch) ([]*auth.Company, error) {
	var b filterBuilder
	if search.Name != "" {
		b.add("name", "ILIKE", "%"+likeEscaper.Replace(search.Name)+"%")
	}
	if search.Address != "" {
		b.add("address", "ILIKE", "%"+likeEscaper.Replace(search.Address)+"%")
	}
	if search.Email != "" {
		b.add("email", "ILIKE", "%"+likeEscaper.Replace(search.Email)+"%")
	}
	if len(b.args) == 0 {
		return nil, oops.Code("COMPANY_SEARCH_EMPTY").Errorf("at least one search term is required")
	}

	companies, err := r.query(ctx, `SELECT `+companyColumns+` FROM companies`+b.where()+` ORDER BY id`, b.args...)
	if err != nil {
		return nil, oops.Code("COMPANY_SEARCH_FAILED").
			With("operation", "search companies").
			Wrap(err)
	}
	return companies, nil
}

// Create stores a new company and returns its assigned ID.
func (r *CompanyRepository) Create(ctx context.Context, company *auth.Company) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO companies (name, contract_level, phone, zip_code, address, email, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		company.Name,
		company.ContractLevel,
		company.Phone,
		company.ZipCode,
		company.Address,
		company.Email,
		company.CreatedBy,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, oops.Code("COMPANY_DUPLICATE").With("name", company.Name).Wrap(auth.ErrDuplicate)
		}
		return 0, oops.Code("COMPANY_CREATE_FAILED").
			With("operation", "insert company").
			With("name", company.Name).
			Wrap(err)
	}
	return id, nil
}

func (r *CompanyRepository) query(ctx context.Context, sql string, args ...any) ([]*auth.Company, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	defer rows.Close()

	var companies []*auth.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, oops.Code("COMPANY_SCAN_FAILED").
				With("operation", "scan company row").
				Wrap(err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("COMPANY_ROWS_ERROR").
			With("operation", "iterate company rows").
			Wrap(err)
	}
	return companies, nil
}

// scanCompany scans one row. pgx.ErrNoRows is returned unwrapped.
func scanCompany(row scanner) (*auth.Company, error) {
	var (
		c         auth.Company
		createdAt time.Time
	)
	if err := row.Scan(&c.ID, &c.Name, &c.ContractLevel, &c.Phone, &c.ZipCode, &c.Address, &c.Email,
		&c.CreatedBy, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	c.CreatedAt = createdAt.UTC()
	return &c, nil
}

// Compile-time interface check.
var _ auth.CompanyStore = (*CompanyRepository)(nil)
