package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telegram-insight-agent/internal/config"
	pg "telegram-insight-agent/internal/infra/db/postgres"
	httpapi "telegram-insight-agent/internal/infra/http"
	"telegram-insight-agent/internal/infra/logging"
	"telegram-insight-agent/internal/infra/metrics"
	red "telegram-insight-agent/internal/infra/redis"
)

const poolStatsInterval = 15 * time.Second

// loadConfig reads --config and checks the sections role needs. A missing default
// config file is fine: everything can come from the environment.
func loadConfig(cmd *cobra.Command, needs ...string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	dev, _ := cmd.Flags().GetBool("dev")
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.LoadConfig(path, dev)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(needs...); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads config, builds the process logger and registers metrics.
func setup(cmd *cobra.Command, role string, needs ...string) (*config.Config, *zerolog.Logger, error) {
	cfg, err := loadConfig(cmd, needs...)
	if err != nil {
		return nil, nil, err
	}
	base := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger := base.With().Str("role", role).Str("version", version).Logger()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, role)
	return cfg, &logger, nil
}

type stores struct {
	pool  *pgxpool.Pool
	redis *red.Client
}

func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *stores) healthChecks() map[string]httpapi.HealthCheck {
	return map[string]httpapi.HealthCheck{
		"postgres": s.pool.Ping,
		"redis":    s.redis.Ping,
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info().
		Str("database", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).
		Str("redis", logging.Redact(cfg.Redis.URL, cfg.Runtime.Dev)).
		Msg("stores connected")
	return &stores{pool: pool, redis: rc}, nil
}

// serveAdmin runs the admin HTTP server and the pool stats reporter in g. Port 0 disables HTTP.
func serveAdmin(ctx context.Context, g *errgroup.Group, cfg *config.Config, port int, jobs httpapi.JobReader, st *stores, logger *zerolog.Logger) {
	g.Go(func() error {
		pg.ReportPoolStats(ctx, st.pool, poolStatsInterval, logger)
		return nil
	})
	if port <= 0 {
		return
	}
	auth := httpapi.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	if cfg.Admin.JWTSecret == "" {
		logger.Warn().Msg("admin.jwt_secret is empty; /api/v1 will refuse every request")
	}
	srv := httpapi.NewServer(port, jobs, auth, st.healthChecks(), logger)
	g.Go(func() error { return srv.Start(ctx) })
}

// exitErr treats shutdown by signal as success.
func exitErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
