// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/auth/memstore"
)

// testClock is a manually advanced clock shared by the store and services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// engine wires every service against one in-memory store.
type engine struct {
	clock     *testClock
	store     *memstore.Store
	companies *memstore.CompanyStore
	hasher    *auth.CredentialHasher
	auth      *auth.Service
	validator *auth.Validator
	accounts  *auth.AccountService
	company   *auth.CompanyService
	logs      *bytes.Buffer
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	clock := newTestClock()
	store := memstore.New(memstore.WithClock(clock.Now))
	hasher, err := auth.NewCredentialHasher(1023)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{buf: logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := []auth.Option{auth.WithLogger(logger), auth.WithClock(clock.Now)}
	settings := auth.DefaultSettings()

	svc, err := auth.NewAuthService(store, store, hasher, settings, opts...)
	require.NoError(t, err)
	validator, err := auth.NewValidator(store, settings, opts...)
	require.NoError(t, err)
	accounts, err := auth.NewAccountService(store, validator, hasher, opts...)
	require.NoError(t, err)
	companySvc, err := auth.NewCompanyService(store.Companies(), validator, opts...)
	require.NoError(t, err)

	return &engine{
		clock:     clock,
		store:     store,
		companies: store.Companies(),
		hasher:    hasher,
		auth:      svc,
		validator: validator,
		accounts:  accounts,
		company:   companySvc,
		logs:      logs,
	}
}

// seedCompany stores a company and returns its ID.
func (e *engine) seedCompany(t *testing.T, name string, level int) int64 {
	t.Helper()
	c, err := auth.NewCompany(auth.CompanyInput{Name: name, ContractLevel: &level}, nil)
	require.NoError(t, err)
	id, err := e.companies.Create(context.Background(), c)
	require.NoError(t, err)
	return id
}

// seedAccount stores an active account whose password is the given one.
func (e *engine) seedAccount(t *testing.T, userName, password string, role auth.Role, companyID *int64) int64 {
	t.Helper()
	a, err := auth.NewAccount(userName, userName+"@example.com", e.hasher.Derive(password, userName),
		role, companyID, auth.StatusActive, false, nil)
	require.NoError(t, err)
	id, err := e.store.Create(context.Background(), a)
	require.NoError(t, err)
	return id
}

// login logs in and fails the test unless a session was created.
func (e *engine) login(t *testing.T, userName, password string) string {
	t.Helper()
	res, err := e.auth.Login(context.Background(), userName, password)
	require.NoError(t, err)
	require.True(t, res.LoggedIn, "login of %s: %s", userName, res.Message)
	return res.Token
}

func (e *engine) account(t *testing.T, id int64) *auth.Account {
	t.Helper()
	found, err := e.store.Find(context.Background(), auth.AccountFilter{ID: &id})
	require.NoError(t, err)
	require.Len(t, found, 1)
	return found[0]
}

func (e *engine) session(t *testing.T, token string) *auth.Session {
	t.Helper()
	s, err := e.store.ReadSession(context.Background(), auth.HashSessionToken(token))
	require.NoError(t, err)
	return s
}

// logEntry is one parsed JSON log line.
type logEntry struct {
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Code    string         `json:"code"`
	Error   string         `json:"error"`
	Context map[string]any `json:"context"`
}

func parseLogs(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e logEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e), "log line: %s", line)
		entries = append(entries, e)
	}
	return entries
}

func findLog(entries []logEntry, msg string) (logEntry, bool) {
	for _, e := range entries {
		if e.Msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

type lockedWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
