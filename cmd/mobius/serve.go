// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/observability"
	"github.com/pjmobius/mobius/pkg/errutil"
)

// Session pruning defaults.
const (
	defaultPruneInterval  = time.Hour
	defaultPruneRetention = 24 * time.Hour
	shutdownTimeout       = 5 * time.Second
)

type serveConfig struct {
	pruneInterval  time.Duration
	pruneRetention time.Duration
}

// Validate checks that the configuration is valid.
func (c *serveConfig) Validate() error {
	if c.pruneInterval <= 0 {
		return oops.Code(auth.CodeConfigInvalid).Errorf("prune-interval must be positive, got %s", c.pruneInterval)
	}
	if c.pruneRetention < 0 {
		return oops.Code(auth.CodeConfigInvalid).Errorf("prune-retention must not be negative, got %s", c.pruneRetention)
	}
	return nil
}

// NewServeCmd creates the serve command.
func NewServeCmd(deps *Deps) *cobra.Command {
	sc := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session maintenance daemon",
		Long: `Connect to PostgreSQL, expose metrics and health checks on metrics.addr and
periodically delete long-expired sessions until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, sc, deps)
		},
	}

	cmd.Flags().DurationVar(&sc.pruneInterval, "prune-interval", defaultPruneInterval, "interval between expired session sweeps")
	cmd.Flags().DurationVar(&sc.pruneRetention, "prune-retention", defaultPruneRetention, "keep expired sessions for this long before deleting")

	return cmd
}

func runServe(cmd *cobra.Command, sc *serveConfig, deps *Deps) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger.InfoContext(ctx, "starting mobius",
		"version", version,
		"prune_interval", sc.pruneInterval,
		"prune_retention", sc.pruneRetention,
	)

	backend, err := deps.BackendFactory(ctx, cfg.Database.URL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer backend.Close()
	logger.InfoContext(ctx, "connected to database")

	var (
		metrics *observability.Metrics
		obsErr  <-chan error
	)
	if cfg.Metrics.Addr != "" {
		obs := deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ping)
		obsErr, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		metrics = obs.Metrics()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := obs.Stop(stopCtx); stopErr != nil {
				errutil.LogError(stopCtx, logger, "observability server shutdown failed", stopErr)
			}
		}()
	}

	pruner := &sessionPruner{
		sessions:  backend.Sessions(),
		clock:     deps.Clock,
		retention: sc.pruneRetention,
		metrics:   metrics,
		logger:    logger,
	}

	ticker := time.NewTicker(sc.pruneInterval)
	defer ticker.Stop()

	pruner.run(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case err, ok := <-obsErr:
			if ok && err != nil {
				return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
			}
			obsErr = nil
		case <-ticker.C:
			pruner.run(ctx)
		}
	}
}

// sessionPruner deletes sessions that expired more than retention ago.
type sessionPruner struct {
	sessions  auth.SessionStore
	clock     func() time.Time
	retention time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func (p *sessionPruner) run(ctx context.Context) {
	removed, err := pruneSessions(ctx, p.sessions, p.clock().Add(-p.retention))
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogError(ctx, p.logger, "session prune failed", err)
		}
		if p.metrics != nil {
			p.metrics.PruneRuns.WithLabelValues("error").Inc()
		}
		return
	}

	if p.metrics != nil {
		p.metrics.PruneRuns.WithLabelValues("success").Inc()
		p.metrics.SessionsPruned.Add(float64(removed))
	}
	if removed > 0 {
		p.logger.InfoContext(ctx, "pruned expired sessions", "count", removed)
	}
}

func pruneSessions(ctx context.Context, sessions auth.SessionStore, before time.Time) (int64, error) {
	removed, err := sessions.DeleteExpiredSessions(ctx, before)
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").With("before", before).Wrap(err)
	}
	return removed, nil
}
