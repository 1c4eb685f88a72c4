// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package mocks provides testify mocks for the auth store interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pjmobius/mobius/internal/auth"
)

// TestingT is the subset of testing.T used by the constructors.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockAccountStore is a mock auth.AccountStore.
type MockAccountStore struct {
	mock.Mock
}

// NewMockAccountStore creates a MockAccountStore that asserts its
// expectations when the test ends.
func NewMockAccountStore(t TestingT) *MockAccountStore {
	m := &MockAccountStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountStore) FindByUserName(ctx context.Context, userName string) ([]*auth.Account, error) {
	args := m.Called(ctx, userName)
	accounts, _ := args.Get(0).([]*auth.Account)
	return accounts, args.Error(1)
}

func (m *MockAccountStore) Find(ctx context.Context, filter auth.AccountFilter) ([]*auth.Account, error) {
	args := m.Called(ctx, filter)
	accounts, _ := args.Get(0).([]*auth.Account)
	return accounts, args.Error(1)
}

func (m *MockAccountStore) Create(ctx context.Context, account *auth.Account) (int64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountStore) UpdateLoginFailure(ctx context.Context, id int64, state auth.LockoutState) error {
	return m.Called(ctx, id, state).Error(0)
}

func (m *MockAccountStore) UpdatePassword(ctx context.Context, id int64, digest string, updatedBy int64) error {
	return m.Called(ctx, id, digest, updatedBy).Error(0)
}

func (m *MockAccountStore) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	args := m.Called(ctx, role)
	return args.Int(0), args.Error(1)
}

// MockSessionStore is a mock auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a MockSessionStore that asserts its
// expectations when the test ends.
func NewMockSessionStore(t TestingT) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionStore) TryCreateSession(ctx context.Context, account auth.AccountSnapshot, tokenHash string, logoutAt time.Time) (*auth.Session, error) {
	args := m.Called(ctx, account, tokenHash, logoutAt)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionStore) ExtendSession(ctx context.Context, tokenHash string, delta time.Duration) error {
	return m.Called(ctx, tokenHash, delta).Error(0)
}

func (m *MockSessionStore) ExpireSession(ctx context.Context, tokenHash string, at time.Time) error {
	return m.Called(ctx, tokenHash, at).Error(0)
}

func (m *MockSessionStore) ReadSession(ctx context.Context, tokenHash string) (*auth.Session, error) {
	args := m.Called(ctx, tokenHash)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionStore) ReadSessionsByAccountAndTime(ctx context.Context, accountID int64, rel auth.TimeRelation, t time.Time) ([]*auth.Session, error) {
	args := m.Called(ctx, accountID, rel, t)
	sessions, _ := args.Get(0).([]*auth.Session)
	return sessions, args.Error(1)
}

func (m *MockSessionStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockCompanyStore is a mock auth.CompanyStore.
type MockCompanyStore struct {
	mock.Mock
}

// NewMockCompanyStore creates a MockCompanyStore that asserts its
// expectations when the test ends.
func NewMockCompanyStore(t TestingT) *MockCompanyStore {
	m := &MockCompanyStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCompanyStore) Get(ctx context.Context, id int64) (*auth.Company, error) {
	args := m.Called(ctx, id)
	company, _ := args.Get(0).(*auth.Company)
	return company, args.Error(1)
}

func (m *MockCompanyStore) Find(ctx context.Context, filter auth.CompanyFilter) ([]*auth.Company, error) {
	args := m.Called(ctx, filter)
	companies, _ := args.Get(0).([]*auth.Company)
	return companies, args.Error(1)
}

func (m *MockCompanyStore) Search(ctx context.Context, search auth.CompanySearch) ([]*auth.Company, error) {
	args := m.Called(ctx, search)
	companies, _ := args.Get(0).([]*auth.Company)
	return companies, args.Error(1)
}

func (m *MockCompanyStore) Create(ctx context.Context, company *auth.Company) (int64, error) {
	args := m.Called(ctx, company)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ auth.AccountStore = (*MockAccountStore)(nil)
	_ auth.SessionStore = (*MockSessionStore)(nil)
	_ auth.CompanyStore = (*MockCompanyStore)(nil)
)
