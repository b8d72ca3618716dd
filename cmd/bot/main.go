// Package main is the entry point for the Jipsa community bot: daily
// check-ins, wake-up proofs, and voice-room study time turned into XP,
// levels, streaks, and leaderboards.
//
// Architecture follows Clean Architecture:
// - Domain: pure business rules, no external dependencies
// - Application: command/query handlers orchestrating use cases
// - Infrastructure: postgres, redis, event bus, scheduler, mirror
// - Interface: the platform gateway (dispatcher, presenter, ports)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cozykbin/Jipsa-bot/config"
	"github.com/cozykbin/Jipsa-bot/internal/application/command"
	"github.com/cozykbin/Jipsa-bot/internal/application/query"
	"github.com/cozykbin/Jipsa-bot/internal/infrastructure/messaging"
	"github.com/cozykbin/Jipsa-bot/internal/infrastructure/mirror"
	"github.com/cozykbin/Jipsa-bot/internal/infrastructure/persistence/postgres"
	"github.com/cozykbin/Jipsa-bot/internal/infrastructure/persistence/redis"
	"github.com/cozykbin/Jipsa-bot/internal/infrastructure/scheduler"
	"github.com/cozykbin/Jipsa-bot/internal/infrastructure/scheduler/jobs"
	"github.com/cozykbin/Jipsa-bot/internal/interface/gateway"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{Level: logger.ParseLevel(cfg.Observability.LogLevel)})
	slogLog := setupSlog(cfg)

	log.Info("starting Jipsa bot",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("running database migrations")
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to redis")
	redisCache, err := redis.NewCache(redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection")
		_ = redisCache.Close()
	}()

	boardCache := redis.NewLeaderboardCache(redisCache)
	refStore := redis.NewMessageRefStore(redisCache)
	presence := redis.NewPresenceTracker(redisCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	memberRepo := postgres.NewMemberRepository(dbConn)
	sessionRepo := postgres.NewSessionRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultConfig()
	busConfig.Logger = slogLog
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. PLATFORM ADAPTER
	// ─────────────────────────────────────────────────────────────────────────
	notifier := newConsoleNotifier(log)
	directory := newStaticDirectory(cfg.Gateway.AdminIDs, presence, memberRepo)
	rooms := detachedRooms{}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	boardsQuery := query.NewLeaderboardHandler(memberRepo, ledgerRepo, boardCache)

	handlers := gateway.Handlers{
		CheckIn:       command.NewCheckInHandler(ledgerRepo, memberRepo, bus, log),
		RequestWakeup: command.NewRequestWakeupHandler(ledgerRepo, sessionRepo, log),
		ResolveWakeup: command.NewResolveWakeupHandler(ledgerRepo, memberRepo, sessionRepo, bus, log),
		Study:         command.NewStudyHandler(ledgerRepo, ledgerRepo, sessionRepo, rooms, cfg.Gateway.CameraRoom, bus, log),
		Admin:         command.NewAdminHandler(ledgerRepo, memberRepo, directory, bus, log),
		Stats:         query.NewStatsHandler(ledgerRepo),
		History:       query.NewHistoryHandler(ledgerRepo),
		Profile:       query.NewProfileHandler(memberRepo, ledgerRepo),
		Boards:        boardsQuery,
	}

	dispatcher := gateway.NewDispatcher(handlers, notifier, directory, refStore, presence, log, gateway.Config{
		TrackedRooms:       cfg.Gateway.TrackedRooms,
		CameraRoom:         cfg.Gateway.CameraRoom,
		StudyChannel:       cfg.Gateway.StudyChannel,
		LeaderboardChannel: cfg.Gateway.LeaderboardChannel,
	})
	if err := dispatcher.AttachRefreshers(bus); err != nil {
		return fmt.Errorf("failed to attach event refreshers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. EVENT MIRROR (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Mirror.WebhookURL != "" {
		log.Info("attaching event mirror")
		m := mirror.New(mirror.NewWebhookSink(cfg.Mirror.WebhookURL), slogLog)
		if err := m.Attach(bus); err != nil {
			return fmt.Errorf("failed to attach event mirror: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. STARTUP RECOVERY
	// Presence is rebuilt from live voice state as members move; sessions
	// opened before the restart keep accruing and finalize on leave.
	// ─────────────────────────────────────────────────────────────────────────
	if err := presence.Reset(ctx); err != nil {
		log.Warn("presence reset failed", logger.Err(err))
	}
	if open, err := sessionRepo.ListStudySessions(ctx); err != nil {
		log.Warn("listing open study sessions failed", logger.Err(err))
	} else if len(open) > 0 {
		log.Info("carrying over open study sessions", logger.Int("count", len(open)))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		pinned := gateway.NewPinnedLeaderboard(notifier, refStore, cfg.Gateway.LeaderboardChannel, log)
		refreshJob := jobs.NewRefreshLeaderboardJob(boardsQuery, pinned, bus, slogLog, jobs.DefaultRefreshLeaderboardConfig())

		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   slogLog,
			Timezone: timeutil.SeoulTZ,
		})
		if err := sched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshLeaderboardInterval)); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		// Warm the boards and place the pinned message before the first tick.
		if err := refreshJob.Run(ctx); err != nil {
			log.Warn("initial leaderboard refresh failed", logger.Err(err))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Jipsa bot is running",
		logger.String("camera_room", cfg.Gateway.CameraRoom),
		logger.Int("tracked_rooms", len(cfg.Gateway.TrackedRooms)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	if sched != nil {
		log.Info("stopping scheduler")
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", logger.Err(err))
		}
	}

	// Event bus, redis, and postgres close through the deferred hooks.
	log.Info("shutdown complete")
	return nil
}

// setupSlog configures the structured logger the infrastructure packages use.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
