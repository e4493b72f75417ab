// Package renewal periodically renews auto-renewing subscriptions by running
// the subscription workflow on the subscriber's behalf.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/hesab/pkg/billing"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/dukex/hesab/pkg/workflow"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule sweeps for due subscriptions once an hour.
	DefaultSchedule = "@hourly"

	// DefaultLead renews subscriptions that end within the next day.
	DefaultLead = 24 * time.Hour
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("renewal scheduler already started")

// Executor runs a workflow. *workflow.Engine satisfies it.
type Executor interface {
	Execute(
		ctx context.Context,
		name string,
		input map[string]any,
		caller models.Identity,
		opts ...workflow.ExecuteOption,
	) (*models.WorkflowResult, error)
}

// Ledger finds subscriptions that need renewing and expires the ones that
// could not be renewed in time.
type Ledger interface {
	DueSubscriptions(ctx context.Context, q persistence.Querier, before time.Time) ([]*models.Subscription, error)
	ExpireSubscription(ctx context.Context, q persistence.Querier, id string) error
}

// Report summarises one sweep. Lapsed counts failed renewals whose period had
// already ended, so the subscription was expired.
type Report struct {
	Due     int
	Renewed int
	Pending int
	Failed  int
	Lapsed  int
}

// Scheduler runs a renewal sweep on a cron schedule.
type Scheduler struct {
	schedule string
	executor Executor
	ledger   Ledger
	db       persistence.Querier
	logger   *slog.Logger
	lead     time.Duration
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLead sets how far ahead of expiry a subscription is renewed.
func WithLead(d time.Duration) Option {
	return func(s *Scheduler) { s.lead = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New validates schedule and builds a stopped scheduler. db is queried outside
// any workflow run to list due subscriptions.
func New(
	schedule string,
	executor Executor,
	ledger Ledger,
	db persistence.Querier,
	logger *slog.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid renewal schedule %q: %w", schedule, err)
	}

	s := &Scheduler{
		schedule: schedule,
		executor: executor,
		ledger:   ledger,
		db:       db,
		logger:   logger.With("module", "renewal", "schedule", schedule),
		lead:     DefaultLead,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start begins sweeping on the schedule until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn))

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	id, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Renewal sweep failed", "error", err)
		}
	})
	if err != nil {
		s.cron = nil

		return fmt.Errorf("failed to add renewal job: %w", err)
	}

	s.logger.InfoContext(ctx, "Starting renewal scheduler", "entry_id", id, "lead", s.lead)
	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping renewal scheduler")

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce renews every subscription due within the lead time. A failed
// renewal is logged and counted, and the sweep moves on. When the run was
// declined and the period has already ended, the subscription lapses.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	before := now.Add(s.lead)

	due, err := s.ledger.DueSubscriptions(ctx, s.db, before)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	report := Report{Due: len(due)}

	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger := s.logger.With("subscription_id", sub.ID, "user_id", sub.UserID, "plan", sub.Plan)

		result, err := s.executor.Execute(ctx, billing.SubscriptionWorkflow, renewalInput(sub),
			models.Identity{UserID: sub.UserID},
			workflow.WithUserAgent("hesab-renewal"))

		switch {
		case err != nil:
			report.Failed++
			logger.ErrorContext(ctx, "Renewal could not run", "error", err)
		case result.Status == models.WorkflowStatusCompleted:
			report.Renewed++
			logger.InfoContext(ctx, "Subscription renewed", "execution_id", result.ExecutionID)
		case result.Status == models.WorkflowStatusRequiresConfirmation:
			report.Pending++
			logger.WarnContext(ctx, "Renewal awaits confirmation", "execution_id", result.ExecutionID)
		default:
			report.Failed++
			logger.WarnContext(ctx, "Renewal failed",
				"execution_id", result.ExecutionID, "error", result.FirstError())

			if sub.EndsAt.After(now) {
				continue
			}

			if err := s.ledger.ExpireSubscription(ctx, s.db, sub.ID); err != nil {
				logger.ErrorContext(ctx, "Failed to expire lapsed subscription", "error", err)

				continue
			}

			report.Lapsed++
			logger.InfoContext(ctx, "Subscription lapsed", "ended_at", sub.EndsAt)
		}
	}

	s.logger.InfoContext(ctx, "Renewal sweep finished",
		"due", report.Due, "renewed", report.Renewed, "pending", report.Pending,
		"failed", report.Failed, "lapsed", report.Lapsed)

	return report, nil
}

// renewalInput continues sub without a gap. Renewals were consented to when
// auto renew was chosen, so they run pre-confirmed.
func renewalInput(sub *models.Subscription) map[string]any {
	return map[string]any{
		"plan":       sub.Plan,
		"starts_at":  sub.EndsAt.UTC().Format(time.RFC3339),
		"renewal_of": sub.ID,
		"auto_renew": true,
		"confirmed":  true,
	}
}
