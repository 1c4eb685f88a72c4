// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package memstore provides in-memory implementations of the auth stores.
// It is used by tests and by the CLI when no database is configured.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/pjmobius/mobius/internal/auth"
)

// Store holds accounts, companies and sessions behind one mutex, which also
// makes TryCreateSession atomic.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	accounts  map[int64]*auth.Account
	companies map[int64]*auth.Company
	sessions  map[string]*auth.Session
	nextID    int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for "now".
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		accounts:  make(map[int64]*auth.Account),
		companies: make(map[int64]*auth.Company),
		sessions:  make(map[string]*auth.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// FindByUserName implements auth.AccountStore.
func (s *Store) FindByUserName(_ context.Context, userName string) ([]*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*auth.Account
	for _, id := range s.sortedAccountIDs() {
		if a := s.accounts[id]; a.UserName == userName {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

// Find implements auth.AccountStore.
func (s *Store) Find(_ context.Context, f auth.AccountFilter) ([]*auth.Account, error) {
	if f.IsEmpty() {
		return nil, oops.Code("ACCOUNT_FILTER_EMPTY").Errorf("at least one account predicate is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*auth.Account
	for _, id := range s.sortedAccountIDs() {
		a := s.accounts[id]
		switch {
		case f.ID != nil && a.ID != *f.ID,
			f.UserName != "" && a.UserName != f.UserName,
			f.Email != "" && a.Email != f.Email,
			f.Role != nil && a.Role != *f.Role,
			f.CompanyID != nil && (a.CompanyID == nil || *a.CompanyID != *f.CompanyID),
			f.Status != nil && a.Status != *f.Status:
			continue
		}
		out = append(out, cloneAccount(a))
	}
	return out, nil
}

// Create implements auth.AccountStore.
func (s *Store) Create(_ context.Context, account *auth.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.UserName == account.UserName {
			return 0, oops.Code("ACCOUNT_DUPLICATE").With("user_name", account.UserName).Wrap(auth.ErrDuplicate)
		}
	}

	stored := cloneAccount(account)
	stored.ID = s.id()
	stored.CreatedAt = s.clock()
	stored.UpdatedAt = stored.CreatedAt
	s.accounts[stored.ID] = stored
	return stored.ID, nil
}

// UpdateLoginFailure implements auth.AccountStore.
func (s *Store) UpdateLoginFailure(_ context.Context, id int64, state auth.LockoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(auth.ErrNotFound)
	}
	a.FailedLoginCount = state.FailedLoginCount
	a.LastFailedLoginAt = cloneTime(state.LastFailedLoginAt)
	a.Status = state.Status
	a.UpdatedAt = s.clock()
	return nil
}

// UpdatePassword implements auth.AccountStore.
func (s *Store) UpdatePassword(_ context.Context, id int64, digest string, updatedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(auth.ErrNotFound)
	}
	a.PasswordDigest = digest
	a.InitialPassword = false
	a.UpdatedBy = &updatedBy
	a.UpdatedAt = s.clock()
	return nil
}

// CountByRole implements auth.AccountStore.
func (s *Store) CountByRole(_ context.Context, role auth.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

// TryCreateSession implements auth.SessionStore.
func (s *Store) TryCreateSession(_ context.Context, account auth.AccountSnapshot, tokenHash string, logoutAt time.Time) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.AccountID]; !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("account_id", account.AccountID).Wrap(auth.ErrNotFound)
	}

	now := s.clock()
	if !logoutAt.After(now) {
		return nil, oops.Code("SESSION_EXPIRY_NOT_FUTURE").
			With("account_id", account.AccountID).
			With("logout_at", logoutAt).
			Wrap(auth.ErrSessionExpiry)
	}
	if live := s.countLive(account.AccountID, now); live > 0 {
		return nil, oops.Code("SESSION_CONFLICT").
			With("account_id", account.AccountID).
			With("live_sessions", live).
			Wrap(auth.ErrSessionConflict)
	}
	if _, exists := s.sessions[tokenHash]; exists {
		return nil, oops.Code("SESSION_DUPLICATE_TOKEN").Wrap(auth.ErrDuplicate)
	}

	session := &auth.Session{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		AccountID: account.AccountID,
		UserName:  account.UserName,
		CompanyID: cloneID(account.CompanyID),
		Role:      account.Role,
		LogoutAt:  logoutAt.UTC(),
		CreatedAt: now,
	}
	s.sessions[tokenHash] = session

	if live := s.countLive(account.AccountID, now); live != 1 {
		delete(s.sessions, tokenHash)
		return nil, oops.Code("SESSION_RACE").
			With("account_id", account.AccountID).
			With("live_sessions", live).
			Wrap(auth.ErrSessionRace)
	}
	return cloneSession(session), nil
}

func (s *Store) countLive(accountID int64, now time.Time) int {
	n := 0
	for _, sess := range s.sessions {
		if sess.AccountID == accountID && sess.IsLiveAt(now) {
			n++
		}
	}
	return n
}

// ExtendSession implements auth.SessionStore.
func (s *Store) ExtendSession(_ context.Context, tokenHash string, delta time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	sess, ok := s.sessions[tokenHash]
	if !ok || !sess.IsLiveAt(now) {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	sess.LogoutAt = now.Add(delta)
	return nil
}

// ExpireSession implements auth.SessionStore.
func (s *Store) ExpireSession(_ context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if at.Before(sess.LogoutAt) {
		sess.LogoutAt = at.UTC()
	}
	return nil
}

// ReadSession implements auth.SessionStore.
func (s *Store) ReadSession(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return cloneSession(sess), nil
}

// ReadSessionsByAccountAndTime implements auth.SessionStore.
func (s *Store) ReadSessionsByAccountAndTime(_ context.Context, accountID int64, rel auth.TimeRelation, t time.Time) ([]*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*auth.Session
	for _, sess := range s.sessions {
		if sess.AccountID != accountID {
			continue
		}
		if (rel == auth.After && sess.LogoutAt.After(t)) || (rel == auth.Before && sess.LogoutAt.Before(t)) {
			out = append(out, cloneSession(sess))
		}
	}
	return out, nil
}

// DeleteExpiredSessions implements auth.SessionStore.
func (s *Store) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, sess := range s.sessions {
		if sess.LogoutAt.Before(before) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Companies returns a view of the store implementing auth.CompanyStore.
// The account and company stores both need Find and Create, so companies
// live behind a separate type sharing the same data.
func (s *Store) Companies() *CompanyStore {
	return &CompanyStore{s: s}
}

// CompanyStore implements auth.CompanyStore on a Store.
type CompanyStore struct {
	s *Store
}

// Get implements auth.CompanyStore.
func (c *CompanyStore) Get(_ context.Context, id int64) (*auth.Company, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	company, ok := c.s.companies[id]
	if !ok {
		return nil, oops.Code("COMPANY_NOT_FOUND").With("company_id", id).Wrap(auth.ErrNotFound)
	}
	cp := *company
	return &cp, nil
}

// Find implements auth.CompanyStore.
func (c *CompanyStore) Find(_ context.Context, f auth.CompanyFilter) ([]*auth.Company, error) {
	if f.IsEmpty() && f.MaxContractLevel == nil {
		return nil, oops.Code("COMPANY_FILTER_EMPTY").Errorf("at least one company predicate is required")
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	return c.collect(func(co *auth.Company) bool {
		switch {
		case f.ID != nil && co.ID != *f.ID,
			f.Name != "" && co.Name != f.Name,
			f.ContractLevel != nil && co.ContractLevel != *f.ContractLevel,
			f.MaxContractLevel != nil && co.ContractLevel > *f.MaxContractLevel,
			f.Phone != "" && co.Phone != f.Phone,
			f.ZipCode != "" && co.ZipCode != f.ZipCode,
			f.Email != "" && co.Email != f.Email:
			return false
		}
		return true
	}), nil
}

// Search implements auth.CompanyStore.
func (c *CompanyStore) Search(_ context.Context, q auth.CompanySearch) ([]*auth.Company, error) {
	if q.IsEmpty() {
		return nil, oops.Code("COMPANY_SEARCH_EMPTY").Errorf("at least one search term is required")
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	return c.collect(func(co *auth.Company) bool {
		return containsFold(co.Name, q.Name) &&
			containsFold(co.Address, q.Address) &&
			containsFold(co.Email, q.Email)
	}), nil
}

// Create implements auth.CompanyStore.
func (c *CompanyStore) Create(_ context.Context, company *auth.Company) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for _, co := range c.s.companies {
		if co.Name == company.Name {
			return 0, oops.Code("COMPANY_DUPLICATE").With("name", company.Name).Wrap(auth.ErrDuplicate)
		}
	}

	stored := *company
	stored.ID = c.s.id()
	stored.CreatedAt = c.s.clock()
	c.s.companies[stored.ID] = &stored
	return stored.ID, nil
}

func (c *CompanyStore) collect(match func(*auth.Company) bool) []*auth.Company {
	var out []*auth.Company
	for id := int64(1); id <= c.s.nextID; id++ {
		co, ok := c.s.companies[id]
		if !ok || !match(co) {
			continue
		}
		cp := *co
		out = append(out, &cp)
	}
	return out
}

// sortedAccountIDs returns account IDs in creation order.
func (s *Store) sortedAccountIDs() []int64 {
	ids := make([]int64, 0, len(s.accounts))
	for id := int64(1); id <= s.nextID; id++ {
		if _, ok := s.accounts[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func containsFold(field, term string) bool {
	return term == "" || strings.Contains(strings.ToLower(field), strings.ToLower(term))
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAccount(a *auth.Account) *auth.Account {
	cp := *a
	cp.CompanyID = cloneID(a.CompanyID)
	cp.LastFailedLoginAt = cloneTime(a.LastFailedLoginAt)
	cp.CreatedBy = cloneID(a.CreatedBy)
	cp.UpdatedBy = cloneID(a.UpdatedBy)
	return &cp
}

func cloneSession(s *auth.Session) *auth.Session {
	cp := *s
	cp.CompanyID = cloneID(s.CompanyID)
	return &cp
}

// Compile-time interface checks.
var (
	_ auth.AccountStore = (*Store)(nil)
	_ auth.SessionStore = (*Store)(nil)
	_ auth.CompanyStore = (*CompanyStore)(nil)
)
