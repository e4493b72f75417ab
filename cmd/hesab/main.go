// Package main is the hesab command: it serves the billing API and runs
// workflows from the shell.
package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/hesab/pkg/log"
	"github.com/dukex/hesab/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "hesab"

func main() {
	cmd := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Run billing workflows for wallets, payments and subscriptions",
		EnableShellCompletion: true,
		Flags:                 commonFlags(),
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			RunCommand(),
			ListCommand(),
			ExecuteCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.WithModule("cli").Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL (postgres://... or memory://)",
			Value:   "memory://",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringSliceFlag{
			Name:    "seed-wallet",
			Usage:   "Opening balance as user=amount in rials, memory:// storage only (repeatable)",
			Sources: cli.EnvVars("SEED_WALLETS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for shared rate limits, in-process limits when empty",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers for the kafka event bus",
			Value:   []string{"localhost:9092"},
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "gateway-url",
			Usage:   "Payment gateway base URL, sandbox approvals when empty",
			Sources: cli.EnvVars("PAYMENT_GATEWAY_URL"),
		},
		&cli.StringFlag{
			Name:    "speech-url",
			Usage:   "Speech-to-text service base URL, voice commands are read as text when empty",
			Sources: cli.EnvVars("SPEECH_SERVICE_URL"),
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key sent to the payment gateway and speech service",
			Sources: cli.EnvVars("GATEWAY_API_KEY"),
		},
		&cli.DurationFlag{
			Name:    "gateway-timeout",
			Usage:   "Timeout of one gateway request",
			Value:   10 * time.Second,
			Sources: cli.EnvVars("GATEWAY_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "plans-file",
			Usage:   "YAML subscription plan catalog, built-in plans when empty",
			Sources: cli.EnvVars("PLANS_FILE"),
		},
		&cli.IntFlag{
			Name:    "pool-size",
			Usage:   "Number of workers running steps",
			Value:   workflow.DefaultPoolSize,
			Sources: cli.EnvVars("WORKER_POOL_SIZE"),
		},
		&cli.DurationFlag{
			Name:    "backoff-unit",
			Usage:   "Base delay between step retries",
			Value:   workflow.DefaultBackoffUnit,
			Sources: cli.EnvVars("RETRY_BACKOFF_UNIT"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}
