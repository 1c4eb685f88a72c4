// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/config"
	"github.com/pjmobius/mobius/internal/xdg"
)

// NewInitSuperCmd creates the init-super command.
func NewInitSuperCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "init-super",
		Short: "Create the first super user",
		Long: `Create the first super user. Reads three lines from stdin: the system
operator password, the new user name and the new password. Refused once any
super user exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitSuper(cmd, deps)
		},
	}
}

func runInitSuper(cmd *cobra.Command, deps *Deps) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	lines, err := readLines(cmd.InOrStdin(), 3)
	if err != nil {
		return err
	}
	systemPassword, userName, password := lines[0], lines[1], lines[2]

	hasher, err := auth.NewCredentialHasher(cfg.Hash.Iterations)
	if err != nil {
		return oops.Code(auth.CodeConfigInvalid).Wrap(err)
	}

	ctx, cancel := withTimeout(cmd, cfg)
	defer cancel()

	backend, err := deps.BackendFactory(ctx, cfg.Database.URL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer backend.Close()

	bootstrap, err := auth.NewBootstrap(backend.Accounts(), hasher, cfg.BootstrapCredentials(),
		auth.WithLogger(logger), auth.WithClock(deps.Clock))
	if err != nil {
		return oops.With("hint", "set bootstrap.admin_name and bootstrap.admin_digest (see mobius hash-password)").Wrap(err)
	}

	created, err := bootstrap.InitSuperUser(ctx, systemPassword, userName, password)
	if err != nil {
		return oops.With("operation", "init super user").Wrap(err)
	}
	if !created {
		return oops.Code("BOOTSTRAP_REFUSED").With("user_name", userName).
			Errorf("super user was not created; see the log for the reason")
	}

	cmd.Printf("Super user %q created\n", userName)
	return nil
}

// NewHashPasswordCmd creates the hash-password command.
func NewHashPasswordCmd() *cobra.Command {
	var (
		name   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bootstrap config block for a system operator",
		Long: `Read a password from stdin, derive its digest for --name with the configured
hash iterations and print a bootstrap YAML block for the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if name == "" {
				return oops.Code(auth.CodeConfigInvalid).Errorf("--name is required")
			}

			lines, err := readLines(cmd.InOrStdin(), 1)
			if err != nil {
				return err
			}
			hasher, err := auth.NewCredentialHasher(cfg.Hash.Iterations)
			if err != nil {
				return oops.Code(auth.CodeConfigInvalid).Wrap(err)
			}

			out, err := bootstrapYAML(name, hasher.Derive(lines[0], name))
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return oops.With("operation", "write bootstrap block").Wrap(err)
			}
			if err := xdg.EnsureDir(filepath.Dir(output)); err != nil {
				return err //nolint:wrapcheck // xdg errors carry the path
			}
			if err := os.WriteFile(output, out, 0o600); err != nil {
				return oops.With("operation", "write bootstrap block").With("path", output).Wrap(err)
			}
			cmd.Printf("Bootstrap block written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "system operator name")
	cmd.Flags().StringVar(&output, "output", "", "write the block to this file instead of stdout")

	return cmd
}

func bootstrapYAML(name, digest string) ([]byte, error) {
	doc := struct {
		Bootstrap config.BootstrapConfig `yaml:"bootstrap"`
	}{
		Bootstrap: config.BootstrapConfig{AdminName: name, AdminDigest: digest},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, oops.With("operation", "encode bootstrap block").Wrap(err)
	}
	return out, nil
}

// NewPruneSessionsCmd creates the prune-sessions command.
func NewPruneSessionsCmd(deps *Deps) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete sessions that expired before a retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return oops.Code(auth.CodeConfigInvalid).Errorf("--older-than must not be negative")
			}
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd, cfg)
			defer cancel()

			backend, err := deps.BackendFactory(ctx, cfg.Database.URL, logger)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer backend.Close()

			removed, err := pruneSessions(ctx, backend.Sessions(), deps.Clock().Add(-olderThan))
			if err != nil {
				return err
			}
			cmd.Printf("Deleted %d expired session(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", defaultPruneRetention, "only delete sessions expired for at least this long")

	return cmd
}

// readLines reads n newline-terminated values from r. Trailing "\r" is
// stripped; the final line may omit its newline.
func readLines(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0, n)
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, oops.Code("INPUT_INVALID").With("operation", "read stdin").Wrap(err)
	}
	if len(lines) < n {
		return nil, oops.Code("INPUT_INVALID").
			With("expected", n).
			With("got", len(lines)).
			Errorf("expected %d line(s) on stdin", n)
	}
	return lines, nil
}
