package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/config"
	"github.com/yamanotatsu/task-master-api/handlers"
	"github.com/yamanotatsu/task-master-api/middleware"
	"github.com/yamanotatsu/task-master-api/models"
	"github.com/yamanotatsu/task-master-api/repositories"
	"github.com/yamanotatsu/task-master-api/repositories/postgres"
	"github.com/yamanotatsu/task-master-api/services/ai"
	"github.com/yamanotatsu/task-master-api/services/keys"
	"github.com/yamanotatsu/task-master-api/services/pricing"
	"github.com/yamanotatsu/task-master-api/services/providers"
	"github.com/yamanotatsu/task-master-api/services/providers/anthropic"
	"github.com/yamanotatsu/task-master-api/services/providers/ollama"
	"github.com/yamanotatsu/task-master-api/services/providers/openai"
	"github.com/yamanotatsu/task-master-api/services/telemetry"
)

const perplexityBaseURL = "https://api.perplexity.ai"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// AI invocation layer
	Registry    *providers.Registry
	KeyResolver *keys.Resolver
	Recorder    *telemetry.Recorder
	AI          *ai.Service

	// Usage persistence
	UsageRepo repositories.UsageRepository
	usageSink *telemetry.AsyncSink

	// HTTP surface
	AuthMiddleware *middleware.AuthMiddleware
	AIHandler      *handlers.AIHandler
	UsageHandler   *handlers.UsageHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initTelemetry(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if err := deps.initAI(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize AI layer: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and the usage schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	d.UsageRepo = postgres.NewUsageRepository(db, d.Logger)

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initTelemetry wires the pricing table and the async usage sink
func (d *Dependencies) initTelemetry(cfg *config.Config) error {
	sink := telemetry.NewAsyncSink(&repoSink{repo: d.UsageRepo}, d.Logger, telemetry.DefaultAsyncConfig())
	if err := sink.Start(); err != nil {
		return err
	}
	d.usageSink = sink

	table := pricing.NewTable(cfg.AI.Catalog)
	d.Recorder = telemetry.NewRecorder(table, sink, d.Logger)

	d.Logger.Info("usage telemetry initialized")
	return nil
}

// initAI registers the provider adapters and builds the invocation service
func (d *Dependencies) initAI(cfg *config.Config) error {
	registry := providers.NewRegistry()

	adapters := []providers.Adapter{
		openai.New(),
		openai.New(openai.WithName("perplexity"), openai.WithBaseURL(perplexityBaseURL)),
		anthropic.New(),
		ollama.New(),
	}
	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return err
		}
		d.Logger.Info("registered provider adapter", zap.String("provider", adapter.Name()))
	}
	d.Registry = registry

	d.KeyResolver = keys.NewResolver(d.Logger)
	d.AI = ai.NewService(cfg, registry, d.KeyResolver, d.Recorder, d.Logger,
		ai.WithDebugRetries(cfg.AI.DebugRetries))
	return nil
}

// initHTTP builds the middleware and handlers
func (d *Dependencies) initHTTP(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT secret not configured, protected routes will reject all requests")
	}
	validator := middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)

	d.AIHandler = handlers.NewAIHandler(d.AI, d.Logger)
	d.UsageHandler = handlers.NewUsageHandler(d.UsageRepo, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Registry, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending usage records before dropping the database connection.
	if d.usageSink != nil {
		if err := d.usageSink.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop usage sink: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// repoSink adapts the usage repository to the telemetry sink interface
type repoSink struct {
	repo repositories.UsageRepository
}

func (s *repoSink) Append(ctx context.Context, record *models.UsageRecord) error {
	return s.repo.Insert(ctx, record)
}
