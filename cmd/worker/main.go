package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/opsdeck/sla-engine/internal/api/http"
	"github.com/opsdeck/sla-engine/internal/api/http/handlers"
	"github.com/opsdeck/sla-engine/internal/auth"
	"github.com/opsdeck/sla-engine/internal/config"
	"github.com/opsdeck/sla-engine/internal/events"
	"github.com/opsdeck/sla-engine/internal/observability"
	"github.com/opsdeck/sla-engine/internal/persistence"
	"github.com/opsdeck/sla-engine/internal/repository"
	"github.com/opsdeck/sla-engine/internal/service"
	"github.com/opsdeck/sla-engine/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	calendarRepo := repository.NewCalendarRepository(pool)
	slaRepo := repository.NewSlaRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	clockStateRepo := repository.NewClockStateRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	clockService := service.NewClockService()

	slaService := service.NewSlaService(service.SlaDependencies{
		CalendarRepo: calendarRepo,
		SlaRepo:      slaRepo,
		TicketRepo:   ticketRepo,
		Clock:        clockService,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	automationService := service.NewAutomationService(service.AutomationDependencies{
		TicketRepo:     ticketRepo,
		ClockStateRepo: clockStateRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		BatchLimit:     cfg.Sla.BatchLimit,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	slaWorker := worker.NewSlaWorker(automationService, redis, logger,
		cfg.Sla.CheckInterval(), cfg.Sla.RunLockTTL())
	slaWorker.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 30*time.Second)

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	slaHandler := handlers.NewSlaHandler(slaWorker, clockService, ticketRepo, clockStateRepo, slaRepo)
	adminHandler := handlers.NewAdminHandler(calendarRepo, slaService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Sla:            slaHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
