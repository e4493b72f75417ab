package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/hesab/pkg/events"
	"github.com/dukex/hesab/pkg/log"
	"github.com/dukex/hesab/pkg/renewal"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 15 * time.Second
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the API server and the subscription renewal scheduler",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "renewal-schedule",
				Usage:   "Cron expression for subscription renewals, \"off\" disables them",
				Value:   renewal.DefaultSchedule,
				Sources: cli.EnvVars("RENEWAL_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "renewal-lead",
				Usage:   "Renew subscriptions ending within this window",
				Value:   renewal.DefaultLead,
				Sources: cli.EnvVars("RENEWAL_LEAD"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Hesab API")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background(), logger)

			if err := a.logNotifications(ctx); err != nil {
				return err
			}

			if schedule := command.String("renewal-schedule"); schedule != "off" {
				scheduler, err := renewal.New(schedule, a.engine, a.storage.Ledger, a.storage.DB,
					log.WithModule("renewal"), renewal.WithLead(command.Duration("renewal-lead")))
				if err != nil {
					return err
				}

				if err := scheduler.Start(ctx); err != nil {
					return err
				}

				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()

					if err := scheduler.Stop(stopCtx); err != nil {
						logger.Error("Failed to stop renewal scheduler", "error", err)
					}
				}()
			}

			server := NewAPI(logger, a)

			return server.Serve(ctx, ":"+strconv.Itoa(command.Int("port")))
		},
	}
}

// logNotifications consumes billing notifications and writes them to the
// log. A delivery service subscribes to the same topic in production.
func (a *app) logNotifications(ctx context.Context) error {
	logger := log.WithModule("notifications")

	err := a.eventBus.Handle(events.BillingNotificationEvent, func(ctx context.Context, event any) error {
		n, ok := event.(*events.BillingNotification)
		if !ok {
			return errors.New("unexpected notification payload")
		}

		logger.InfoContext(ctx, "Billing notification",
			"user_id", n.UserID,
			"kind", n.Kind,
			"transaction_id", n.TransactionID,
			"message", n.Message,
		)

		return nil
	})
	if err != nil {
		return err
	}

	return a.eventBus.Subscribe(ctx)
}
