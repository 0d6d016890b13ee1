package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/infra/adapters/ai"
	tele "telegram-insight-agent/internal/infra/adapters/telegram"
	pg "telegram-insight-agent/internal/infra/db/postgres"
	httpapi "telegram-insight-agent/internal/infra/http"
	"telegram-insight-agent/internal/infra/i18n"
	"telegram-insight-agent/internal/infra/listener"
	red "telegram-insight-agent/internal/infra/redis"
	"telegram-insight-agent/internal/infra/scheduler"
	"telegram-insight-agent/internal/infra/tdl"
	"telegram-insight-agent/internal/infra/worker"
	"telegram-insight-agent/internal/usecase"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// --- bot ---

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot, the status listener and the admin HTTP server",
	Long: `Run the Telegram bot, the status listener and the admin HTTP server.

With --dry-run no Telegram connection is made: bot commands are not served and
deliveries are logged instead of sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		needs := []string{"database", "redis"}
		if !dryRun {
			needs = append(needs, "bot")
		}
		cfg, logger, err := setup(cmd, "bot", needs...)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		tm := pg.NewTxManager(st.pool)
		subRepo := pg.NewSubscriptionRepo(st.pool)
		settingsRepo := pg.NewUserSettingsRepo(st.pool)
		jobRepo := pg.NewJobRepo(st.pool, tm)
		bus := red.NewStatusBus(st.redis, logger)
		indicators := red.NewStatusIndicatorRepo(st.redis, cfg.Redis.TTL)

		jobUC := usecase.NewJobUseCase(jobRepo, tm, bus, logger)
		monitorUC := usecase.NewMonitorUseCase(subRepo, settingsRepo, logger)

		tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Locale)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)

		var delivery adapter.DeliverySurface
		if dryRun {
			logger.Warn().Msg("dry run: Telegram is disabled")
			delivery = tele.NewNoopDelivery(logger)
		} else {
			api, err := tele.NewAPI(cfg.Bot.Token, cfg.Runtime.Dev)
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			delivery = tele.NewDelivery(api, logger)
			bot, err := tele.NewBot(api, cfg.Bot, jobUC, monitorUC, indicators, red.NewRateLimiter(st.redis), tr, logger)
			if err != nil {
				return err
			}
			g.Go(func() error { return bot.StartPolling(gctx) })
		}

		l := listener.NewListener(bus, delivery, indicators, tr, logger)
		g.Go(func() error { return l.Run(gctx) })

		port, _ := cmd.Flags().GetInt("admin-port")
		if !cmd.Flags().Changed("admin-port") {
			port = cfg.Admin.Port
		}
		serveAdmin(gctx, g, cfg, port, jobUC, st, logger)

		logger.Info().Bool("dry_run", dryRun).Msg("bot started")
		err = exitErr(g.Wait())
		logger.Info().Msg("bot stopped")
		return err
	},
}

// --- worker ---

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Claim queued jobs and run the export and summarize pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, "worker", "database", "redis", "llm", "tdl")
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		tm := pg.NewTxManager(st.pool)
		jobRepo := pg.NewJobRepo(st.pool, tm)
		bus := red.NewStatusBus(st.redis, logger)

		summarizer, err := ai.NewSummarizer(ctx, cfg.LLM, logger)
		if err != nil {
			return fmt.Errorf("llm: %w", err)
		}
		exporter := tdl.NewExporter(tdl.NewRunner(cfg.TDL, logger), cfg.TDL.Timeout)
		processor := worker.NewJobProcessor(
			jobRepo,
			pg.NewSubscriptionRepo(st.pool),
			pg.NewUserSettingsRepo(st.pool),
			exporter,
			summarizer,
			bus,
			cfg.TDL.OutputDirBase,
			cfg.LLM.MaxTokens,
			logger,
		)

		g, gctx := errgroup.WithContext(ctx)
		pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize, logger)
		pool.Start(gctx)
		g.Go(func() error {
			processor.Start(gctx, pool, cfg.Worker.PollInterval)
			pool.Stop()
			return gctx.Err()
		})

		port, _ := cmd.Flags().GetInt("admin-port")
		serveAdmin(gctx, g, cfg, port, usecase.NewJobUseCase(jobRepo, tm, bus, logger), st, logger)

		logger.Info().
			Int("workers", cfg.Worker.Workers).
			Str("llm_provider", cfg.LLM.Provider).
			Str("llm_model", cfg.LLM.Model).
			Msg("worker started")
		err = exitErr(g.Wait())
		logger.Info().Msg("worker stopped")
		return err
	},
}

// --- scheduler ---

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Periodically enqueue a job for every active subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, "scheduler", "database", "redis")
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		tm := pg.NewTxManager(st.pool)
		jobUC := usecase.NewJobUseCase(pg.NewJobRepo(st.pool, tm), tm, red.NewStatusBus(st.redis, logger), logger)
		sched := scheduler.NewScheduler(
			pg.NewSubscriptionRepo(st.pool),
			jobUC,
			red.NewLocker(st.redis),
			scheduler.Options{
				Interval:     cfg.Scheduler.Interval,
				ErrorBackoff: cfg.Scheduler.ErrorBackoff,
				LockTTL:      cfg.Scheduler.LockTTL,
			},
			logger,
		)

		once, _ := cmd.Flags().GetBool("once")
		if once {
			n, err := sched.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d job(s)\n", n)
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return sched.Run(gctx) })
		port, _ := cmd.Flags().GetInt("admin-port")
		serveAdmin(gctx, g, cfg, port, jobUC, st, logger)
		return exitErr(g.Wait())
	},
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, "migrate", "database")
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info().Msg("schema is up to date")
		return nil
	},
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Mint a bearer token for the admin API",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		subject := "admin"
		if len(args) == 1 {
			subject = args[0]
		}
		tok, err := httpapi.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).Mint(subject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	botCmd.Flags().Bool("dry-run", false, "log deliveries instead of talking to Telegram")
	botCmd.Flags().Int("admin-port", 0, "admin HTTP port (defaults to admin.port, 0 disables)")
	workerCmd.Flags().Int("admin-port", 0, "serve health and metrics on this port (0 disables)")
	schedulerCmd.Flags().Int("admin-port", 0, "serve health and metrics on this port (0 disables)")
	schedulerCmd.Flags().Bool("once", false, "run a single sweep and exit")
}
