// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pjmobius/mobius/internal/store"
)

// NewMigrateCmd creates the migrate command and its subcommands.
// Running migrate without a subcommand applies all pending migrations.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back, inspect or force the companies, accounts and sessions schema.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all data; pass --yes to confirm")
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateStatus)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  `Mark VERSION as applied and clear the dirty flag. Use only after repairing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Force(target); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
				}
				cmd.Printf("Schema version forced to %d\n", target)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *Deps, run func(*cobra.Command, Migrator) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("Warning: closing migrator: %v\n", closeErr)
		}
	}()

	return run(cmd, m)
}

func runMigrateUp(cmd *cobra.Command, m Migrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}

	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m Migrator) error {
	current, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list applied migrations").Wrap(err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
	}

	cmd.Printf("Current version: %d\n", current)
	if dirty {
		cmd.Println("WARNING: schema is dirty; repair it and run 'mobius migrate force VERSION'")
	}
	cmd.Println("Applied:")
	printVersions(cmd, applied)
	cmd.Println("Pending:")
	printVersions(cmd, pending)
	return nil
}

func printVersions(cmd *cobra.Command, versions []uint) {
	if len(versions) == 0 {
		cmd.Println("  (none)")
		return
	}
	for _, v := range versions {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = strconv.FormatUint(uint64(v), 10)
		}
		cmd.Printf("  %s\n", name)
	}
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Wrapf(err, "version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Errorf("version must be non-negative")
	}
	return v, nil
}
