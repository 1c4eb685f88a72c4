// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package main

import (
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pjmobius/mobius/internal/auth"
)

// NewSessionInfoCmd creates the session-info command.
func NewSessionInfoCmd(deps *Deps) *cobra.Command {
	var extend bool

	cmd := &cobra.Command{
		Use:   "session-info",
		Short: "Show the session behind a token",
		Long: `Read a session token from stdin and print its owner, expiry and whether it is
live. With --extend a live session is pushed out by session.extension, exactly
as a validated request would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionInfo(cmd, deps, extend)
		},
	}

	cmd.Flags().BoolVar(&extend, "extend", false, "extend a live session by session.extension")

	return cmd
}

func runSessionInfo(cmd *cobra.Command, deps *Deps, extend bool) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	lines, err := readLines(cmd.InOrStdin(), 1)
	if err != nil {
		return err
	}
	token := lines[0]

	ctx, cancel := withTimeout(cmd, cfg)
	defer cancel()

	backend, err := deps.BackendFactory(ctx, cfg.Database.URL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer backend.Close()

	validator, err := auth.NewValidator(backend.Sessions(), cfg.Settings(),
		auth.WithLogger(logger), auth.WithClock(deps.Clock))
	if err != nil {
		return oops.Code(auth.CodeConfigInvalid).Wrap(err)
	}

	live, err := validator.IsValid(ctx, token, extend)
	if err != nil {
		return oops.With("operation", "validate session").Wrap(err)
	}

	session, err := validator.SessionInfo(ctx, token)
	if errors.Is(err, auth.ErrNotFound) {
		return oops.Code("SESSION_UNKNOWN").Errorf("no session matches the token")
	}
	if err != nil {
		return oops.With("operation", "read session").Wrap(err)
	}

	cmd.Printf("Session for %q (account %d, role %s)\n", session.UserName, session.AccountID, session.Role)
	cmd.Printf("Expires: %s\n", session.LogoutAt.Format(time.RFC3339))
	if live {
		cmd.Println("Live: yes")
	} else {
		cmd.Println("Live: no")
	}
	return nil
}
