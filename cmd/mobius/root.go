// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/config"
	"github.com/pjmobius/mobius/internal/logging"
)

// NewRootCmd creates the root command for the Mobius CLI.
// A nil deps uses the production implementations.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "mobius",
		Short: "Mobius - authentication and session engine",
		Long: `Mobius authenticates users of the companies backend, issues
single-session tokens with sliding expiration, and administers accounts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/mobius/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewInitSuperCmd(deps))
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewPruneSessionsCmd(deps))
	cmd.AddCommand(NewSessionInfoCmd(deps))

	return cmd
}

// loadConfig reads and validates configuration for cmd and installs the
// configured logger as the slog default.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, oops.Code(auth.CodeConfigInvalid).Wrap(err)
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // config errors are already coded
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err //nolint:wrapcheck // config errors are already coded
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // config errors are already coded
	}
	logger := logging.SetDefault(logging.Options{
		Service: "mobius",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

// requireDatabase fails when no database URL is configured.
func requireDatabase(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code(auth.CodeConfigInvalid).
			Errorf("database url is required (--database-url, database.url or %s)", config.DatabaseURLEnv)
	}
	return nil
}

// withTimeout bounds a one-shot command by request.timeout.
func withTimeout(cmd *cobra.Command, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), cfg.Request.Timeout)
}
