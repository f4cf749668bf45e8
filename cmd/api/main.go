package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/facility-tickets/internal/api/http"
	"github.com/spec-kit/facility-tickets/internal/api/http/handlers"
	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/config"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/observability"
	"github.com/spec-kit/facility-tickets/internal/persistence"
	"github.com/spec-kit/facility-tickets/internal/realtime"
	"github.com/spec-kit/facility-tickets/internal/repository"
	"github.com/spec-kit/facility-tickets/internal/repository/memory"
	"github.com/spec-kit/facility-tickets/internal/service"
	"github.com/spec-kit/facility-tickets/internal/sla"
	"github.com/spec-kit/facility-tickets/internal/worker"
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

	var store repository.Store
	readiness := []handlers.Dependency{}
	if pg.Configured() {
		if cfg.Postgres.RunMigrations {
			if err := pg.Migrate(ctx, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = pg.Store()
		readiness = append(readiness, handlers.Dependency{Name: "postgres", Check: pg})
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	policy := sla.NewPolicy(cfg.SLA.Targets(), cfg.SLA.Overrides())

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger.Named("assignment"),
		Metrics:    metrics,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:          store,
		Policy:         policy,
		Assignments:    assignmentService,
		Dispatcher:     dispatcher,
		Logger:         logger.Named("tickets"),
		Metrics:        metrics,
		AutoAssign:     cfg.Routing.AutoAssign,
		DeleteAnySkill: !cfg.Auth.DeleteRequiresTechnical,
	})
	notificationService := service.NewNotificationService(dispatcher, store.Notifications(), logger.Named("notifications"), cfg.Notification)

	var publisher *realtime.Publisher
	if cfg.Realtime.Enabled {
		publisher = realtime.NewPublisher(rdb.Client(), cfg.Realtime.ChannelPrefix, logger.Named("realtime"))
		readiness = append(readiness, handlers.Dependency{Name: "redis", Check: rdb})
	}
	worker.StartNotificationWorker(dispatcher, notificationService, publisher)

	sweeper := worker.NewSLASweeper(ticketService, cfg.Worker.SLASweepSchedule, cfg.Worker.SLASweepBatch, logger.Named("sla-sweeper"))
	go func() {
		if err := sweeper.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sla sweeper stopped", zap.Error(err))
		}
	}()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness...),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Assignments:    handlers.NewAssignmentHandler(assignmentService),
		Board:          handlers.NewBoardHandler(ticketService),
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
