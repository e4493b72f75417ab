// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/hesab/pkg/billing"
	"github.com/dukex/hesab/pkg/config"
	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/ratelimit"
	"github.com/dukex/hesab/pkg/workflow"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// EngineConfig holds the flag values that shape the engine.
type EngineConfig struct {
	PoolSize       int
	BackoffUnit    time.Duration
	GatewayURL     string
	SpeechURL      string
	APIKey         string
	GatewayTimeout time.Duration
	RedisURL       string
	RateLimit      ratelimit.Limit
	PlansFile      string
}

// Engine is a ready workflow engine and what it was built from.
type Engine struct {
	*workflow.Engine

	Service *billing.Service
	closers []func() error
}

// Close stops the worker pool, then releases the rate limiter.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Engine.Close(ctx)

	for _, closeFn := range e.closers {
		if closeErr := closeFn(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}

// NewEngine wires the billing catalog to storage, gateways, the rate limiter
// and the event bus.
func NewEngine(
	ctx context.Context,
	cfg EngineConfig,
	storage *Storage,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) (*Engine, error) {
	limiter, closeLimiter, err := NewRateLimiter(ctx, cfg.RedisURL, cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	payments, transcriber := NewGateways(cfg, logger)

	serviceOpts := []billing.Option{
		billing.WithRateLimiter(limiter),
		billing.WithNotifier(bus),
	}

	if cfg.PlansFile != "" {
		catalog, err := config.LoadPlanCatalog(cfg.PlansFile)
		if err != nil {
			_ = closeLimiter()

			return nil, err
		}

		serviceOpts = append(serviceOpts, billing.WithPricer(catalog.Pricer()))
	}

	service := billing.NewService(storage.Ledger, payments, transcriber, logger.With("module", "billing"), serviceOpts...)

	registry, err := workflow.NewRegistry(service.Catalog()...)
	if err != nil {
		_ = closeLimiter()

		return nil, fmt.Errorf("failed to build workflow registry: %w", err)
	}

	opts := []workflow.Option{
		workflow.WithPoolSize(cfg.PoolSize),
		workflow.WithPublisher(bus),
		workflow.WithRunnerOptions(workflow.WithBackoffUnit(cfg.BackoffUnit)),
	}
	if tracer != nil {
		opts = append(opts, workflow.WithTracer(tracer))
	}

	engine := workflow.NewEngine(registry, storage.Persistence, logger.With("module", "engine"), opts...)

	return &Engine{Engine: engine, Service: service, closers: []func() error{closeLimiter}}, nil
}

// NewRateLimiter shares quotas through Redis when redisURL is set and falls
// back to an in-process limiter otherwise.
func NewRateLimiter(
	ctx context.Context,
	redisURL string,
	limit ratelimit.Limit,
	logger *slog.Logger,
) (ratelimit.Limiter, func() error, error) {
	if limit.Requests <= 0 || limit.Window <= 0 {
		limit = ratelimit.DefaultLimit
	}

	if redisURL == "" {
		logger.InfoContext(ctx, "Using in-process rate limiter", "requests", limit.Requests, "window", limit.Window)

		return ratelimit.NewLocalLimiter(limit), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	limiter := ratelimit.NewRedisLimiter(client, limit, logger.With("module", "ratelimit"))

	return limiter, limiter.Close, nil
}

// NewGateways returns HTTP clients for configured services and local
// stand-ins for the rest.
func NewGateways(cfg EngineConfig, logger *slog.Logger) (billing.PaymentGateway, billing.Transcriber) {
	var (
		payments    billing.PaymentGateway
		transcriber billing.Transcriber
	)

	if cfg.GatewayURL != "" {
		payments = gateway.NewPaymentClient(cfg.GatewayURL, cfg.APIKey, cfg.GatewayTimeout)
	} else {
		logger.Warn("No payment gateway configured, approving payments in sandbox")

		payments = gateway.NewSandbox()
	}

	if cfg.SpeechURL != "" {
		transcriber = gateway.NewSpeechClient(cfg.SpeechURL, cfg.APIKey, cfg.GatewayTimeout)
	} else {
		logger.Warn("No speech service configured, voice commands are read as text")

		transcriber = gateway.StaticTranscriber{}
	}

	return payments, transcriber
}
