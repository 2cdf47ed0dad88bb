// Package bootstrap assembles backends and services shared by the API
// server and the operator CLI.
package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/config"
	"github.com/REZ0AN/TaskPilot/internal/enrichment"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/notify"
	"github.com/REZ0AN/TaskPilot/internal/observability"
	"github.com/REZ0AN/TaskPilot/internal/persistence"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	"github.com/REZ0AN/TaskPilot/internal/service"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
)

// Backends holds storage and messaging. Postgres and Redis are nil when the
// service runs on the in-memory fallbacks.
type Backends struct {
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Tickets    repository.TicketRepository
	Users      repository.UserRepository
	Runs       repository.WorkflowRunRepository
	Steps      workflow.StepStore
	Dispatcher events.Dispatcher
}

// Open connects to Postgres and Redis. Without a DSN the repositories are
// in-memory; without a reachable Redis events and step results stay in
// process, which loses pending work on restart.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	b := &Backends{}

	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		b.Postgres = pg
		b.Tickets = repository.NewTicketRepository(pool)
		b.Users = repository.NewUserRepository(pool)
		b.Runs = repository.NewWorkflowRunRepository(pool)
	} else {
		logger.Warn("POSTGRES_DSN not provided; using in-memory repositories")
		store := repository.NewMemoryStore()
		b.Tickets = store.Tickets()
		b.Users = store.Users()
		b.Runs = store.Runs()
	}

	rdb, err := persistence.ConnectRedis(ctx, cfg.Redis, 2*time.Second, logger)
	if err != nil {
		logger.Warn("redis unavailable; using in-process event queue and step store", zap.Error(err))
		b.Steps = workflow.NewMemoryStepStore()
		b.Dispatcher = events.NewInMemoryDispatcher(logger, 0)
		return b, nil
	}

	b.Redis = rdb
	b.Steps = workflow.NewRedisStepStore(rdb.Client, cfg.App.Name+":step", cfg.Workflow.StepTTL())
	b.Dispatcher = events.NewRedisStreamDispatcher(rdb.Client, events.RedisStreamConfig{
		Stream:   cfg.Workflow.Stream,
		Group:    cfg.Workflow.ConsumerGroup,
		Consumer: cfg.Workflow.ConsumerName,
	}, logger)
	return b, nil
}

// Close releases connections.
func (b *Backends) Close() {
	if b.Redis != nil {
		b.Redis.Close()
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
}

// Services is the wired service layer.
type Services struct {
	Resolver   *service.AssignmentResolver
	Tickets    *service.TicketService
	Auth       *service.AuthService
	Enrichment *service.TicketEnrichmentWorkflow
	Signup     *service.SignupNotificationWorkflow
	Engine     *workflow.Engine
}

// NewServices builds services on top of b.
func NewServices(cfg *config.Config, b *Backends, metrics *observability.Metrics, logger *zap.Logger) *Services {
	resolver := service.NewAssignmentResolver(service.AssignmentDependencies{
		TicketRepo: b.Tickets,
		UserRepo:   b.Users,
		Logger:     logger.Named("resolver"),
	})

	generator := enrichment.NewGeminiGenerator(enrichment.GeminiConfig{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout(),
	})
	notifier := notify.NewDiscordNotifier(cfg.Notification.DiscordWebhookURL, cfg.Notification.Timeout(), logger.Named("notify"))

	workflowLogger := logger.Named("workflow")
	return &Services{
		Resolver: resolver,
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo: b.Tickets,
			UserRepo:   b.Users,
			Resolver:   resolver,
			Dispatcher: b.Dispatcher,
			Logger:     logger.Named("tickets"),
		}),
		Auth: service.NewAuthService(cfg.Auth, service.AuthDependencies{
			UserRepo:   b.Users,
			Dispatcher: b.Dispatcher,
			Logger:     logger.Named("auth"),
		}),
		Enrichment: service.NewTicketEnrichmentWorkflow(service.EnrichmentDependencies{
			TicketRepo: b.Tickets,
			Generator:  generator,
			Resolver:   resolver,
			Logger:     workflowLogger,
		}),
		Signup: service.NewSignupNotificationWorkflow(b.Users, notifier, workflowLogger),
		Engine: workflow.NewEngine(b.Steps, b.Runs, workflowLogger,
			workflow.WithBackoff(cfg.Workflow.RetryBackoff()),
			workflow.WithObserver(metrics)),
	}
}
