package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/REZ0AN/TaskPilot/internal/api/http"
	"github.com/REZ0AN/TaskPilot/internal/api/http/handlers"
	"github.com/REZ0AN/TaskPilot/internal/auth"
	"github.com/REZ0AN/TaskPilot/internal/bootstrap"
	"github.com/REZ0AN/TaskPilot/internal/config"
	"github.com/REZ0AN/TaskPilot/internal/observability"
	"github.com/REZ0AN/TaskPilot/internal/worker"
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

	backends, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open backends", zap.Error(err))
	}
	defer backends.Close()

	metrics := observability.NewMetrics()
	services := bootstrap.NewServices(cfg, backends, metrics, logger)

	worker.StartWorkflowWorkers(backends.Dispatcher, services.Engine, worker.Workflows{
		Enrichment: services.Enrichment,
		Signup:     services.Signup,
	}, logger.Named("worker"))

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := backends.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event dispatcher stopped", zap.Error(err))
		}
	}()

	authMiddleware := auth.NewAuthMiddleware(services.Auth.TokenManager(), backends.Users, cfg.Auth.CookieName)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger.Named("http"), metrics, cfg.App.RequestTimeout())

	dependencies := map[string]handlers.Pinger{"postgres": nil, "redis": nil}
	if backends.Postgres != nil {
		dependencies["postgres"] = backends.Postgres
	}
	if backends.Redis != nil {
		dependencies["redis"] = backends.Redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		APIVersion:     cfg.App.APIVersion,
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Users:          handlers.NewUsersHandler(services.Auth, cfg.Auth.CookieName, cfg.App.Env == "production"),
		Tickets:        handlers.NewTicketsHandler(services.Tickets),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	workers.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
