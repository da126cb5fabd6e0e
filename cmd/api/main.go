package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/presence-auth-service/internal/api/http"
	"github.com/spec-kit/presence-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-auth-service/internal/auth"
	"github.com/spec-kit/presence-auth-service/internal/clock"
	"github.com/spec-kit/presence-auth-service/internal/config"
	"github.com/spec-kit/presence-auth-service/internal/events"
	"github.com/spec-kit/presence-auth-service/internal/observability"
	"github.com/spec-kit/presence-auth-service/internal/persistence"
	"github.com/spec-kit/presence-auth-service/internal/presence"
	"github.com/spec-kit/presence-auth-service/internal/ratelimit"
	"github.com/spec-kit/presence-auth-service/internal/repository"
	"github.com/spec-kit/presence-auth-service/internal/service"
	"github.com/spec-kit/presence-auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meterProvider, shutdownMetrics, err := observability.NewMeterProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to init telemetry", zap.Error(err))
	}
	metrics, err := observability.NewMetrics(meterProvider)
	if err != nil {
		logger.Fatal("failed to create instruments", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger))

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	realClock := clock.Real{}
	var userRepo repository.UserRepository
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pg.PoolHandle())
	default:
		logger.Warn("using in-memory credential store; accounts are lost on restart")
		userRepo = repository.NewMemoryUserRepository(realClock)
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var throttle service.LoginThrottle
	if cfg.LoginThrottle.Enabled && redis.Enabled() {
		throttle = ratelimit.NewLoginLimiter(redis.Client, cfg.LoginThrottle.MaxAttempts, cfg.LoginThrottle.Window())
	}

	registry := presence.NewRegistry(realClock)
	if _, err := metrics.ObserveOnlineUsers(registry.Count); err != nil {
		logger.Warn("online gauge not registered", zap.Error(err))
	}

	presenceService := service.NewPresenceService(registry, dispatcher, logger)
	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Presence:   presenceService,
		Throttle:   throttle,
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      realClock,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}

	app := httptransport.NewServer(httptransport.ServerConfig{
		AppName:        cfg.App.Name,
		Logger:         logger,
		Metrics:        metrics,
		CORS:           cfg.CORS,
		RequestTimeout: cfg.App.RequestTimeout(),
		Routes: httptransport.RouteConfig{
			Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
				"postgres": pg,
				"redis":    redis,
			}),
			Users:          handlers.NewUsersHandler(authService, presenceService, cfg.Auth.MinPasswordLength),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), presenceService),
		},
	})

	sweeper := worker.NewPresenceSweeper(registry, worker.SweeperOptions{
		Interval:   cfg.Presence.SweepInterval(),
		StaleAfter: cfg.Presence.StaleAfter(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	sweeper.Start(ctx)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()), zap.String("storage", cfg.Storage.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	sweeper.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownMetrics(flushCtx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
