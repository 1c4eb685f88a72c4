// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/auth/postgres"
)

var _ = Describe("Repositories", func() {
	var (
		ctx       context.Context
		accounts  *postgres.AccountRepository
		sessions  *postgres.SessionRepository
		companies *postgres.CompanyRepository
		companyID int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		accounts = postgres.NewAccountRepository(testPool)
		sessions = postgres.NewSessionRepository(testPool)
		companies = postgres.NewCompanyRepository(testPool)

		level := 3
		company, err := auth.NewCompany(auth.CompanyInput{
			Name:          fmt.Sprintf("acme-%d", time.Now().UnixNano()),
			ContractLevel: &level,
			Address:       "1 Main St",
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		companyID, err = companies.Create(ctx, company)
		Expect(err).NotTo(HaveOccurred())
	})

	createAccount := func(name string) *auth.Account {
		a, err := auth.NewAccount(name, name+"@example.com", "digest", auth.RoleUser, &companyID, auth.StatusActive, false, nil)
		Expect(err).NotTo(HaveOccurred())
		a.ID, err = accounts.Create(ctx, a)
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	Describe("AccountRepository", func() {
		It("round-trips an account and rejects duplicate names", func() {
			name := fmt.Sprintf("user-%d", time.Now().UnixNano())
			created := createAccount(name)

			found, err := accounts.FindByUserName(ctx, name)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].ID).To(Equal(created.ID))
			Expect(*found[0].CompanyID).To(Equal(companyID))

			dup, err := auth.NewAccount(name, "", "digest", auth.RoleUser, &companyID, auth.StatusActive, false, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = accounts.Create(ctx, dup)
			Expect(errors.Is(err, auth.ErrDuplicate)).To(BeTrue())
		})

		It("persists lockout state and password changes", func() {
			a := createAccount(fmt.Sprintf("lock-%d", time.Now().UnixNano()))
			now := time.Now().UTC().Truncate(time.Microsecond)

			Expect(accounts.UpdateLoginFailure(ctx, a.ID, auth.LockoutState{
				FailedLoginCount:  3,
				LastFailedLoginAt: &now,
				Status:            auth.StatusSuspended,
			})).To(Succeed())
			Expect(accounts.UpdatePassword(ctx, a.ID, "newdigest", a.ID)).To(Succeed())

			found, err := accounts.FindByUserName(ctx, a.UserName)
			Expect(err).NotTo(HaveOccurred())
			Expect(found[0].Status).To(Equal(auth.StatusSuspended))
			Expect(found[0].FailedLoginCount).To(Equal(3))
			Expect(found[0].LastFailedLoginAt.Equal(now)).To(BeTrue())
			Expect(found[0].PasswordDigest).To(Equal("newdigest"))
			Expect(found[0].InitialPassword).To(BeFalse())
		})
	})

	Describe("SessionRepository", func() {
		It("allows exactly one of many concurrent logins", func() {
			a := createAccount(fmt.Sprintf("race-%d", time.Now().UnixNano()))
			logoutAt := time.Now().Add(30 * time.Minute)

			const workers = 20
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			start := make(chan struct{})
			for i := range workers {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					_, err := sessions.TryCreateSession(ctx, a.Snapshot(), fmt.Sprintf("hash-%s-%d", a.UserName, i), logoutAt)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, auth.ErrSessionConflict):
						conflicts++
					default:
						Fail("unexpected error: " + err.Error())
					}
				}(i)
			}
			close(start)
			wg.Wait()

			Expect(successes).To(Equal(1))
			Expect(conflicts).To(Equal(workers - 1))

			live, err := sessions.ReadSessionsByAccountAndTime(ctx, a.ID, auth.After, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(live).To(HaveLen(1))
		})

		It("extends live sessions and never revives expired ones", func() {
			a := createAccount(fmt.Sprintf("extend-%d", time.Now().UnixNano()))
			hash := "extend-" + a.UserName

			_, err := sessions.TryCreateSession(ctx, a.Snapshot(), hash, time.Now().Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())

			Expect(sessions.ExtendSession(ctx, hash, time.Hour)).To(Succeed())
			s, err := sessions.ReadSession(ctx, hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.LogoutAt).To(BeTemporally(">", time.Now().Add(50*time.Minute)))

			Expect(sessions.ExpireSession(ctx, hash, time.Now().Add(-time.Second))).To(Succeed())
			err = sessions.ExtendSession(ctx, hash, time.Hour)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			s, err = sessions.ReadSession(ctx, hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.IsLiveAt(time.Now())).To(BeFalse())

			_, err = sessions.TryCreateSession(ctx, a.Snapshot(), hash+"-2", time.Now().Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an expiry that is not in the future", func() {
			a := createAccount(fmt.Sprintf("past-%d", time.Now().UnixNano()))
			hash := "past-" + a.UserName

			_, err := sessions.TryCreateSession(ctx, a.Snapshot(), hash, time.Now().Add(-time.Hour))
			Expect(errors.Is(err, auth.ErrSessionExpiry)).To(BeTrue())
			Expect(errors.Is(err, auth.ErrSessionConflict)).To(BeFalse())

			_, err = sessions.ReadSession(ctx, hash)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("prunes expired sessions", func() {
			a := createAccount(fmt.Sprintf("prune-%d", time.Now().UnixNano()))
			hash := "prune-" + a.UserName
			_, err := sessions.TryCreateSession(ctx, a.Snapshot(), hash, time.Now().Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions.ExpireSession(ctx, hash, time.Now().Add(-time.Hour))).To(Succeed())

			n, err := sessions.DeleteExpiredSessions(ctx, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))

			_, err = sessions.ReadSession(ctx, hash)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("CompanyRepository", func() {
		It("searches by partial name ignoring case", func() {
			got, err := companies.Search(ctx, auth.CompanySearch{Name: "ACME-"})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeEmpty())

			got, err = companies.Search(ctx, auth.CompanySearch{Name: "%"})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})
})
