package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/hesab/pkg/cmd"
	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/otelhelper"
	"github.com/dukex/hesab/pkg/ratelimit"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// app is everything a command needs to run workflows.
type app struct {
	storage  *cmd.Storage
	eventBus eventbus.EventBus
	engine   *cmd.Engine
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, command *cli.Command, logger *slog.Logger) (*app, error) {
	a := &app{}

	var tracer trace.Tracer

	if command.Bool("otel") {
		t, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		tracer = t
		a.closers = append(a.closers, shutdown)
	}

	storage, err := cmd.NewStorage(ctx, logger, command.String("database-url"))
	if err != nil {
		a.close(ctx, logger)

		return nil, err
	}

	a.storage = storage
	a.closers = append(a.closers, storage.Persistence.Close)

	if err := storage.SeedWallets(ctx, logger, command.StringSlice("seed-wallet")); err != nil {
		a.close(ctx, logger)

		return nil, err
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
	if err != nil {
		a.close(ctx, logger)

		return nil, err
	}

	a.eventBus = bus
	a.closers = append(a.closers, func(context.Context) error { return bus.Close() })

	engine, err := cmd.NewEngine(ctx, cmd.EngineConfig{
		PoolSize:       command.Int("pool-size"),
		BackoffUnit:    command.Duration("backoff-unit"),
		GatewayURL:     command.String("gateway-url"),
		SpeechURL:      command.String("speech-url"),
		APIKey:         command.String("api-key"),
		GatewayTimeout: command.Duration("gateway-timeout"),
		RedisURL:       command.String("redis-url"),
		RateLimit:      ratelimit.DefaultLimit,
		PlansFile:      command.String("plans-file"),
	}, storage, bus, tracer, logger)
	if err != nil {
		a.close(ctx, logger)

		return nil, err
	}

	a.engine = engine
	a.closers = append(a.closers, engine.Close)

	return a, nil
}

// close releases resources in reverse order of creation.
func (a *app) close(ctx context.Context, logger *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to release resource", "error", err)
		}
	}
}
