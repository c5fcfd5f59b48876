package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-service/internal/api/http"
	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/gateway"
	"github.com/spec-kit/crm-service/internal/lock"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/persistence"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{}

	var (
		requestRepo repository.ServiceRequestRepository
		historyRepo repository.RequestHistoryRepository
	)
	if pg.Enabled() {
		pool := pg.PoolHandle()
		requestRepo = repository.NewServiceRequestRepository(pool)
		historyRepo = repository.NewRequestHistoryRepository(pool)
		readiness["postgres"] = pg
	} else {
		requestRepo = repository.NewMemoryServiceRequestRepository()
		historyRepo = repository.NewMemoryRequestHistoryRepository()
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.LockBackend == config.LockBackendRedis {
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		locker = lock.NewRedisLocker(redis.Client, cfg.Redis.LockTTL(), logger)
		readiness["redis"] = redis
	}
	logger.Info("record lock backend selected", zap.String("backend", cfg.Redis.LockBackend))

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	historyService := service.NewHistoryService(dispatcher, historyRepo, requestRepo, logger)
	worker.StartHistoryWorker(historyService)

	crmService := service.NewCrmService(service.CrmDependencies{
		RequestRepo:      requestRepo,
		Locker:           locker,
		Gateway:          gateway.NewHTTPGateway(cfg.Downstream, logger, metrics),
		Dispatcher:       dispatcher,
		Logger:           logger,
		Downstream:       cfg.Downstream,
		AssignmentPolicy: service.AssignmentPolicyFromConfig(cfg.Requests.AssignmentPolicy),
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Requests: handlers.NewRequestsHandler(crmService, historyService),
		Triggers: handlers.NewTriggersHandler(crmService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
