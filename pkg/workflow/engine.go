// Package workflow provides the billing workflow engine: a registry of named
// step sequences, a retrying step runner backed by a shared worker pool, and
// an orchestrator that wraps each run in a single unit of work.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/events"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/otelhelper"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultConfirmationMessage = "confirmation required to continue"

// Engine executes registered workflows. One Engine serves many concurrent
// runs; the worker pool is the only state they share.
type Engine struct {
	registry  *Registry
	uow       persistence.UnitOfWork
	logger    *slog.Logger
	pool      *Pool
	runner    *Runner
	publisher eventbus.EventPublisher
	tracer    trace.Tracer

	poolSize      int
	runnerOptions []RunnerOption
}

// Option configures an Engine.
type Option func(*Engine)

// WithPoolSize sets the number of workers shared by all runs.
func WithPoolSize(n int) Option {
	return func(e *Engine) { e.poolSize = n }
}

// WithRunnerOptions passes options through to the step runner.
func WithRunnerOptions(opts ...RunnerOption) Option {
	return func(e *Engine) { e.runnerOptions = append(e.runnerOptions, opts...) }
}

// WithPublisher publishes a lifecycle event after every run.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithTracer records a span per run and per step.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// NewEngine starts the worker pool. Call Close to release it.
func NewEngine(registry *Registry, uow persistence.UnitOfWork, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		uow:      uow,
		logger:   logger,
		poolSize: DefaultPoolSize,
		tracer:   otelhelper.NoopTracer("hesab/workflow"),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.pool = NewPool(e.poolSize, logger)
	e.runner = NewRunner(e.pool, logger, e.runnerOptions...)

	return e
}

// Registry returns the catalog the engine executes from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Close releases the worker pool, waiting for in-flight handlers up to ctx.
func (e *Engine) Close(ctx context.Context) error {
	return e.pool.Close(ctx)
}

// ExecuteOption sets request metadata on the run.
type ExecuteOption func(*models.ExecutionContext)

// WithIPAddress records the caller's address for handlers.
func WithIPAddress(ip string) ExecuteOption {
	return func(ec *models.ExecutionContext) { ec.IPAddress = ip }
}

// WithUserAgent records the caller's user agent for handlers.
func WithUserAgent(ua string) ExecuteOption {
	return func(ec *models.ExecutionContext) { ec.UserAgent = ua }
}

// runState is what the step loop hands to the commit/rollback decision.
type runState struct {
	completed    []string
	confirmation bool
	message      string
	abortErr     error
}

// Execute runs the named workflow for caller. Business failures are reported
// in the result; the returned error is non-nil only for an unknown workflow
// or a failure of the unit-of-work provider.
func (e *Engine) Execute(
	ctx context.Context,
	name string,
	input map[string]any,
	caller models.Identity,
	opts ...ExecuteOption,
) (*models.WorkflowResult, error) {
	start := time.Now()
	executionID := generateExecutionID()

	logger := e.logger.With("workflow", name, "execution_id", executionID, "user_id", caller.UserID)

	steps, found := e.registry.Lookup(name)
	if !found {
		err := fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
		logger.WarnContext(ctx, "Unknown workflow requested")

		return &models.WorkflowResult{
			ExecutionID:    executionID,
			Workflow:       name,
			Status:         models.WorkflowStatusFailed,
			Data:           map[string]models.StepOutcome{},
			Errors:         []string{err.Error()},
			ExecutionTime:  time.Since(start),
			StepsCompleted: []string{},
			StartedAt:      start,
		}, err
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowNameKey, name),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.UserIDKey, caller.UserID),
	)
	defer span.End()

	ec := models.NewExecutionContext(ctx, executionID, name, caller, input)
	for _, opt := range opts {
		opt(ec)
	}

	logger.InfoContext(ctx, "Starting workflow execution", "steps", len(steps))

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		sysErr := newTransactionError("begin", err)
		otelhelper.SetSystemFault(span, sysErr)
		logger.ErrorContext(ctx, "Failed to open unit of work", "error", err)

		result := e.result(ec, runState{}, models.WorkflowStatusFailed, start)
		result.Errors = append(result.Errors, sysErr.Error())

		return result, sysErr
	}

	ec.Tx = tx

	state := e.runSteps(ec, steps, logger)

	if state.abortErr != nil {
		return e.abort(ctx, span, logger, tx, ec, state, start)
	}

	if err := tx.Commit(); err != nil {
		sysErr := newTransactionError("commit", err)
		otelhelper.SetSystemFault(span, sysErr)
		logger.ErrorContext(ctx, "Failed to commit unit of work", "error", err)

		result := e.result(ec, state, models.WorkflowStatusFailed, start)
		result.Errors = append(result.Errors, sysErr.Error())
		e.publish(ctx, logger, result, caller)

		return result, sysErr
	}

	status := models.WorkflowStatusCompleted
	if state.confirmation {
		status = models.WorkflowStatusRequiresConfirmation
	}

	result := e.result(ec, state, status, start)
	otelhelper.SetRunStatus(span, string(status))

	logger.InfoContext(ctx, "Workflow execution finished",
		"status", status,
		"steps_completed", len(result.StepsCompleted),
		"warnings", len(result.Errors),
		"duration", result.ExecutionTime,
	)

	e.publish(ctx, logger, result, caller)

	return result, nil
}

func (e *Engine) runSteps(ec *models.ExecutionContext, steps []models.StepDefinition, logger *slog.Logger) runState {
	state := runState{completed: make([]string, 0, len(steps))}

	for _, step := range steps {
		stepLogger := logger.With("step", step.Name, "required", step.Required)

		if missing, met := dependenciesMet(step, state.completed); !met {
			if step.Required {
				stepLogger.WarnContext(ec.Context(), "Required step has unmet dependency, aborting", "dependency", missing)
				state.abortErr = newDependencyError(step.Name, missing)

				return state
			}

			stepLogger.InfoContext(ec.Context(), "Skipping optional step with unmet dependency", "dependency", missing)

			continue
		}

		outcome, err := e.runStep(ec, step)
		if err != nil {
			ec.AddError(step.Name, err)

			if step.Required {
				stepLogger.ErrorContext(ec.Context(), "Required step failed, aborting", "error", err)
				state.abortErr = &StepError{Step: step.Name, Op: "execute", Err: err}

				return state
			}

			stepLogger.WarnContext(ec.Context(), "Optional step failed, continuing", "error", err)

			continue
		}

		if outcome == nil {
			outcome = models.StepOutcome{}
		}

		ec.SetResult(step.Name, outcome)

		if step.RequiresConfirmation && outcome.NeedsConfirmation() {
			state.confirmation = true
			state.message = outcome.ConfirmationMessage()

			if state.message == "" {
				state.message = defaultConfirmationMessage
			}

			stepLogger.InfoContext(ec.Context(), "Step requires confirmation, pausing run")

			return state
		}

		state.completed = append(state.completed, step.Name)
		stepLogger.DebugContext(ec.Context(), "Step completed")
	}

	return state
}

func (e *Engine) runStep(ec *models.ExecutionContext, step models.StepDefinition) (models.StepOutcome, error) {
	_, span := otelhelper.StartSpan(ec.Context(), e.tracer, "workflow.step",
		attribute.String(otelhelper.ExecutionIDKey, ec.ID),
		attribute.String(otelhelper.StepNameKey, step.Name),
		attribute.Bool(otelhelper.StepRequiredKey, step.Required),
		attribute.Int(otelhelper.StepAttemptsKey, step.RetryCount),
	)
	defer span.End()

	outcome, err := e.runner.Run(step, ec)
	if err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.StepNameKey, step.Name),
			attribute.String(otelhelper.ErrorKindKey, "step"))
	}

	return outcome, err
}

func (e *Engine) abort(
	ctx context.Context,
	span trace.Span,
	logger *slog.Logger,
	tx persistence.Tx,
	ec *models.ExecutionContext,
	state runState,
	start time.Time,
) (*models.WorkflowResult, error) {
	otelhelper.SetError(span, state.abortErr)

	ec.AddErrorMessage(state.abortErr.Error())

	var sysErr error
	if err := tx.Rollback(); err != nil {
		sysErr = newTransactionError("rollback", err)
		logger.ErrorContext(ctx, "Failed to roll back unit of work", "error", err)
	}

	result := e.result(ec, state, models.WorkflowStatusFailed, start)
	otelhelper.SetRunStatus(span, string(result.Status))

	logger.WarnContext(ctx, "Workflow execution failed",
		"error", state.abortErr,
		"steps_completed", len(result.StepsCompleted),
		"duration", result.ExecutionTime,
	)

	e.publish(ctx, logger, result, ec.User)

	return result, sysErr
}

func (e *Engine) result(ec *models.ExecutionContext, state runState, status models.WorkflowStatus, start time.Time) *models.WorkflowResult {
	completed := state.completed
	if completed == nil {
		completed = []string{}
	}

	return &models.WorkflowResult{
		ExecutionID:          ec.ID,
		Workflow:             ec.Workflow,
		Status:               status,
		Data:                 ec.Results(),
		Errors:               ec.Errors(),
		ExecutionTime:        time.Since(start),
		StepsCompleted:       completed,
		ConfirmationRequired: state.confirmation,
		ConfirmationMessage:  state.message,
		StartedAt:            start,
	}
}

func (e *Engine) publish(ctx context.Context, logger *slog.Logger, result *models.WorkflowResult, caller models.Identity) {
	if e.publisher == nil {
		return
	}

	var event eventbus.Event

	switch result.Status {
	case models.WorkflowStatusCompleted:
		event = events.WorkflowExecutionCompleted{
			BaseEvent:      events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, result.Workflow, result.ExecutionID),
			UserID:         caller.UserID,
			StepsCompleted: result.StepsCompleted,
			Warnings:       result.Errors,
			DurationMs:     result.ExecutionTime.Milliseconds(),
		}
	case models.WorkflowStatusRequiresConfirmation:
		event = events.WorkflowExecutionConfirmationRequired{
			BaseEvent:      events.NewBaseEvent(events.WorkflowExecutionConfirmationRequiredEvent, result.Workflow, result.ExecutionID),
			UserID:         caller.UserID,
			Message:        result.ConfirmationMessage,
			StepsCompleted: result.StepsCompleted,
		}
	default:
		event = events.WorkflowExecutionFailed{
			BaseEvent:  events.NewBaseEvent(events.WorkflowExecutionFailedEvent, result.Workflow, result.ExecutionID),
			UserID:     caller.UserID,
			Error:      result.FirstError(),
			Errors:     result.Errors,
			DurationMs: result.ExecutionTime.Milliseconds(),
		}
	}

	if err := e.publisher.Publish(ctx, result.ExecutionID, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish execution event", "error", err)
	}
}

func dependenciesMet(step models.StepDefinition, completed []string) (string, bool) {
	for _, dep := range step.Dependencies {
		if !slices.Contains(completed, dep) {
			return dep, false
		}
	}

	return "", true
}

// generateExecutionID generates a unique execution ID
func generateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}
