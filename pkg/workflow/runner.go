package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/hesab/pkg/models"
	retry "github.com/sethvargo/go-retry"
)

// DefaultBackoffUnit is the base of the exponential delay between attempts.
const DefaultBackoffUnit = time.Second

// RetryObserver is told about every retry before the runner sleeps.
// attempt is zero-based and names the attempt that just failed.
type RetryObserver func(step string, attempt int, delay time.Duration, err error)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackoffUnit sets the base delay. Attempt i failing waits 2^i units.
func WithBackoffUnit(unit time.Duration) RunnerOption {
	return func(r *Runner) {
		if unit > 0 {
			r.backoffUnit = unit
		}
	}
}

// WithRetryObserver registers a hook called before each backoff sleep.
func WithRetryObserver(observer RetryObserver) RunnerOption {
	return func(r *Runner) { r.onRetry = observer }
}

// Runner executes one step with a per-attempt timeout and bounded retries.
type Runner struct {
	pool        *Pool
	logger      *slog.Logger
	backoffUnit time.Duration
	onRetry     RetryObserver
}

// NewRunner creates a runner that dispatches attempts to pool.
func NewRunner(pool *Pool, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		pool:        pool,
		logger:      logger,
		backoffUnit: DefaultBackoffUnit,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes step.Handler up to step.RetryCount times. It returns the first
// successful outcome, or the error of the last attempt.
func (r *Runner) Run(step models.StepDefinition, ec *models.ExecutionContext) (models.StepOutcome, error) {
	attempts := max(step.RetryCount, 1)

	var (
		outcome models.StepOutcome
		lastErr error
		attempt int
	)

	base := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(r.backoffUnit))
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := base.Next()
		if !stop {
			r.retrying(ec, step, attempt-1, delay, lastErr)
		}

		return delay, stop
	})

	err := retry.Do(ec.Context(), backoff, func(ctx context.Context) error {
		out, err := r.attempt(ctx, step, ec)
		attempt++

		if err != nil {
			lastErr = err
			if errors.Is(err, ErrPoolClosed) {
				return err
			}

			return retry.RetryableError(err)
		}

		outcome = out

		return nil
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

func (r *Runner) attempt(ctx context.Context, step models.StepDefinition, ec *models.ExecutionContext) (models.StepOutcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	results, err := r.pool.Submit(attemptCtx, step.Name, func() (models.StepOutcome, error) {
		return step.Handler(ec)
	})
	if err != nil {
		return nil, r.waitError(ctx, step, err)
	}

	select {
	case res := <-results:
		return res.Outcome, res.Err
	case <-attemptCtx.Done():
		return nil, r.waitError(ctx, step, attemptCtx.Err())
	}
}

// waitError tells a per-attempt timeout apart from cancellation of the run.
func (r *Runner) waitError(runCtx context.Context, step models.StepDefinition, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() == nil {
		return fmt.Errorf("%w after %s", ErrStepTimeout, step.Timeout)
	}

	return err
}

func (r *Runner) retrying(ec *models.ExecutionContext, step models.StepDefinition, attempt int, delay time.Duration, err error) {
	r.logger.WarnContext(ec.Context(), "Step attempt failed, retrying",
		"execution_id", ec.ID,
		"step", step.Name,
		"attempt", attempt+1,
		"max_attempts", step.RetryCount,
		"delay", delay,
		"error", err,
	)

	if r.onRetry != nil {
		r.onRetry(step.Name, attempt, delay, err)
	}
}
