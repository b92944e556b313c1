// Package main - точка входа демона контроллера учебных сессий FocusFlow Hub.
//
// Демон владеет всем живым состоянием сессий: таймерами, дебаунсером
// присутствия и координаторами. PostgreSQL и Redis - вспомогательные
// слои (история и read-модель), при их недоступности демон деградирует
// до чисто in-memory режима.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: runtime сессий, репозитории, внешние API
// - Interface: HTTP API для клиентских приложений
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/focusflow-app/focusflow-hub/config"
	"github.com/focusflow-app/focusflow-hub/internal/application/command"
	"github.com/focusflow-app/focusflow-hub/internal/application/eventhandler"
	"github.com/focusflow-app/focusflow-hub/internal/application/query"
	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/internal/domain/shared"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/external/syncgw"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/messaging"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/focusflow-app/focusflow-hub/internal/infrastructure/persistence/redis"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/runtime"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/scheduler"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/focusflow-app/focusflow-hub/internal/interface/http"
	"github.com/focusflow-app/focusflow-hub/pkg/circuitbreaker"
	"github.com/focusflow-app/focusflow-hub/pkg/logger"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"

	goredis "github.com/redis/go-redis/v9"
)

// version перезаписывается через -ldflags при сборке релиза.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sessiond",
		Short:         "FocusFlow Hub session controller daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print sessiond version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sessiond %s\n", version)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session controller daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			return run(ctx)
		},
	}
}

// eventBus объединяет публикацию, подписку и закрытие: и in-memory,
// и Redis-реализация удовлетворяют его.
type eventBus interface {
	shared.EventBus
	Close() error
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	slog.SetDefault(log)

	log.Info("starting FocusFlow Hub session controller",
		"version", version,
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К POSTGRESQL (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		dbConn      *postgres.Connection
		sessionRepo session.Repository
		learnerRepo = (*postgres.LearnerRepository)(nil)
	)

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			log.Info("running database migrations...")
			if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations completed")
		}

		sessionRepo = postgres.NewSessionRepository(dbConn)
		learnerRepo = postgres.NewLearnerRepository(dbConn)
	} else {
		// Без БД сессии живут только в памяти: история и статистика
		// недоступны, XP не начисляется.
		log.Warn("DATABASE_URL is empty - running without PostgreSQL")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПОДКЛЮЧЕНИЕ К REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisClient *goredis.Client
		liveCache   session.LiveCache
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
		redisClient, err = redisinfra.NewClient(ctx, redisinfra.Config{
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
			log.Warn("failed to connect to Redis, live cache disabled", "error", err)
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
			liveCache = redisinfra.NewSessionCache(redisClient)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var bus eventBus
	if redisClient != nil {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisClient,
			LocalBusConfig: busConfig,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		log.Info("event bus initialized", "mode", "redis")
	} else {
		bus = messaging.NewInMemoryEventBus(busConfig)
		log.Info("event bus initialized", "mode", "in-memory")
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SYNC GATEWAY (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		gwClient   *syncgw.Client
		dispatcher *syncgw.Dispatcher
		sink       runtime.SnapshotSink
	)

	if !cfg.SyncGateway.Disabled && cfg.SyncGateway.BaseURL != "" {
		gwConfig := syncgw.DefaultClientConfig(cfg.SyncGateway.BaseURL)
		gwConfig.APIKey = cfg.SyncGateway.APIKey
		gwConfig.Timeout = cfg.SyncGateway.RequestTimeout
		gwConfig.Logger = log

		gwClient = syncgw.NewClient(gwConfig)
		dispatcher = syncgw.NewDispatcher(gwClient, log)
		dispatcher.Start()
		sink = dispatcher
		log.Info("sync gateway dispatcher started", "base_url", cfg.SyncGateway.BaseURL)
	} else {
		log.Info("sync gateway disabled - snapshots stay local")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUNTIME МЕНЕДЖЕР СЕССИЙ
	// ─────────────────────────────────────────────────────────────────────────
	manager := runtime.NewManager(runtime.ManagerConfig{
		Clock:               timeutil.NewRealClock(),
		Logger:              log,
		Publisher:           bus,
		Sink:                sink,
		Cache:               liveCache,
		Repo:                sessionRepo,
		SnapshotIntervalSec: cfg.Runtime.SnapshotIntervalSec,
		DebugFailFast:       cfg.Runtime.DebugFailFast,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER (Commands, Queries, Event Handlers)
	// ─────────────────────────────────────────────────────────────────────────
	progressRepo := learnerRepoOrNil(learnerRepo)

	startSessionCmd := command.NewStartSessionHandler(manager, progressRepo, log)
	controlSessionCmd := command.NewControlSessionHandler(manager, log)
	recordProgressCmd := command.NewRecordProgressHandler(manager, log)
	reportSignalCmd := command.NewReportSignalHandler(manager, log)

	getSessionQuery := query.NewGetSessionHandler(manager, liveCache, sessionRepo)

	var activeSessionsQuery *query.GetActiveSessionsHandler
	if liveCache != nil {
		activeSessionsQuery = query.NewGetActiveSessionsHandler(liveCache)
	}

	var (
		studyStatsQuery  *query.GetStudyStatsHandler
		leaderboardQuery *query.GetLeaderboardHandler
	)
	if sessionRepo != nil {
		studyStatsQuery = query.NewGetStudyStatsHandler(sessionRepo)
	}
	if progressRepo != nil {
		leaderboardQuery = query.NewGetLeaderboardHandler(progressRepo)

		completedHandler := eventhandler.NewOnSessionCompletedHandler(progressRepo, bus, log)
		if err := completedHandler.Register(bus); err != nil {
			return fmt.Errorf("failed to register event handler: %w", err)
		}
		log.Info("session completion handler registered")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: cfg.App.Location,
		})

		if liveCache != nil {
			pruneJob := jobs.NewPruneLiveCacheJob(liveCache, log)
			if err := sched.Register(pruneJob, scheduler.NewIntervalSchedule(cfg.Scheduler.PruneLiveCacheInterval)); err != nil {
				return fmt.Errorf("failed to register prune job: %w", err)
			}
		}
		if progressRepo != nil {
			streakCron, err := scheduler.ParseCronExpression(fmt.Sprintf("0 %d * * *", cfg.Scheduler.StreakWatchHour))
			if err != nil {
				return fmt.Errorf("invalid streak watch schedule: %w", err)
			}
			streakJob := jobs.NewStreakWatchJob(progressRepo, timeutil.NewRealClock(), log)
			if err := sched.Register(streakJob, streakCron); err != nil {
				return fmt.Errorf("failed to register streak watch job: %w", err)
			}
		}
		if progressRepo != nil && sessionRepo != nil {
			digestCron, err := scheduler.ParseCronExpression(fmt.Sprintf("%d %d * * *",
				cfg.Scheduler.DailyDigestMinute, cfg.Scheduler.DailyDigestHour))
			if err != nil {
				return fmt.Errorf("invalid daily digest schedule: %w", err)
			}
			digestJob := jobs.NewDailyDigestJob(progressRepo, sessionRepo, log)
			if err := sched.Register(digestJob, digestCron); err != nil {
				return fmt.Errorf("failed to register daily digest job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler started", "jobs", len(sched.ListJobs()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.Server.Host
	httpConfig.Port = cfg.Server.Port
	httpConfig.ReadTimeout = cfg.Server.ReadTimeout
	httpConfig.WriteTimeout = cfg.Server.WriteTimeout
	httpConfig.IdleTimeout = cfg.Server.IdleTimeout
	httpConfig.EnableCORS = cfg.Server.EnableCORS
	httpConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.Server.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		StartSessionHandler:   startSessionCmd,
		ControlSessionHandler: controlSessionCmd,
		RecordProgressHandler: recordProgressCmd,
		ReportSignalHandler:   reportSignalCmd,

		GetSessionHandler:        getSessionQuery,
		GetActiveSessionsHandler: activeSessionsQuery,
		GetStudyStatsHandler:     studyStatsQuery,
		GetLeaderboardHandler:    leaderboardQuery,

		Logger: log,
		HealthChecker: &healthChecker{
			db:       dbConn,
			redis:    redisClient,
			gwClient: gwClient,
			manager:  manager,
		},
	}
	if sched != nil {
		httpDeps.JobAdmin = sched
	}
	server := httpserver.NewServer(httpConfig, httpDeps)

	errCh := server.StartAsync()
	log.Info("FocusFlow Hub session controller is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// Сначала перестаём принимать запросы.
	log.Info("stopping HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("failed to stop scheduler", "error", err)
			shutdownErr = err
		}
	}

	// Финализируем живые сессии: каждая уходит в cancelled с финальным
	// снапшотом, чтобы прогресс не потерялся.
	log.Info("shutting down session manager...", "active_sessions", manager.ActiveCount())
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down session manager", "error", err)
		shutdownErr = err
	}

	// Дожимаем очередь снапшотов после финализации сессий.
	if dispatcher != nil {
		log.Info("draining sync gateway queue...", "pending", dispatcher.QueueLen())
		dispatcher.Stop()
	}

	// Event bus и соединения закроются через defer.

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
		return shutdownErr
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// learnerRepoOrNil разворачивает типизированный nil в интерфейсный nil,
// чтобы проверки progressRepo != nil работали как ожидается.
func learnerRepoOrNil(repo *postgres.LearnerRepository) progress.Repository {
	if repo == nil {
		return nil
	}
	return repo
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// healthChecker агрегирует состояние зависимостей для /health и /ready.
type healthChecker struct {
	db       *postgres.Connection
	redis    *goredis.Client
	gwClient *syncgw.Client
	manager  *runtime.Manager
}

// Check implements httpserver.HealthChecker.
func (h *healthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy: true,
		Ready:   true,
		Checks:  make(map[string]string),
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status.Healthy = false
			status.Ready = false
			status.Checks["postgres"] = "down: " + err.Error()
		} else {
			total, idle, _ := h.db.Stats()
			status.Checks["postgres"] = fmt.Sprintf("ok (conns=%d idle=%d)", total, idle)
		}
	} else {
		status.Checks["postgres"] = "disabled"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			// Redis вниз - деградация, но не авария: сессии живут в памяти.
			status.Checks["redis"] = "down: " + err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	} else {
		status.Checks["redis"] = "disabled"
	}

	if h.gwClient != nil {
		state := h.gwClient.BreakerState()
		status.Checks["sync_gateway"] = "breaker " + state.String()
		if state == circuitbreaker.StateOpen {
			status.Checks["sync_gateway"] = "breaker open - snapshots queued"
		}
	} else {
		status.Checks["sync_gateway"] = "disabled"
	}

	status.Checks["active_sessions"] = fmt.Sprintf("%d", h.manager.ActiveCount())

	if !status.Healthy {
		status.Message = "one or more dependencies are down"
	}
	return status
}
