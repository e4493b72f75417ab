package models

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dukex/hesab/pkg/persistence"
)

// Identity is the caller on whose behalf a workflow runs.
type Identity struct {
	UserID      string `json:"user_id"      validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ExecutionContext is the mutable state threaded through one run. It is owned
// by that run and must not be shared with another. A handler abandoned after a
// timeout may still hold it, so results and errors are guarded.
type ExecutionContext struct {
	ID        string
	Workflow  string
	User      Identity
	Input     map[string]any
	IPAddress string
	UserAgent string

	// Tx is the unit of work wrapping the whole run. Handlers persist through it.
	Tx persistence.Tx

	ctx context.Context

	mu      sync.RWMutex
	results map[string]StepOutcome
	errors  []string
}

// NewExecutionContext creates the state for a fresh run.
func NewExecutionContext(ctx context.Context, id, workflow string, user Identity, input map[string]any) *ExecutionContext {
	if input == nil {
		input = make(map[string]any)
	}

	return &ExecutionContext{
		ID:       id,
		Workflow: workflow,
		User:     user,
		Input:    input,
		results:  make(map[string]StepOutcome),
		errors:   make([]string, 0),
		ctx:      ctx,
	}
}

// Context returns the context of the run.
func (ec *ExecutionContext) Context() context.Context {
	if ec.ctx == nil {
		return context.Background()
	}

	return ec.ctx
}

// AddError records a failure in "step: message" form.
func (ec *ExecutionContext) AddError(step string, err error) {
	ec.AddErrorMessage(fmt.Sprintf("%s: %s", step, err.Error()))
}

// AddErrorMessage appends msg unless it is already the last recorded error.
func (ec *ExecutionContext) AddErrorMessage(msg string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if n := len(ec.errors); n > 0 && ec.errors[n-1] == msg {
		return
	}

	ec.errors = append(ec.errors, msg)
}

// Errors returns a copy of the recorded errors.
func (ec *ExecutionContext) Errors() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	if ec.errors == nil {
		return []string{}
	}

	return slices.Clone(ec.errors)
}

// SetResult stores the outcome of a step.
func (ec *ExecutionContext) SetResult(step string, outcome StepOutcome) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.results == nil {
		ec.results = make(map[string]StepOutcome)
	}

	ec.results[step] = outcome
}

// Result returns the outcome a completed step stored, if any.
func (ec *ExecutionContext) Result(step string) (StepOutcome, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	outcome, ok := ec.results[step]

	return outcome, ok
}

// Results returns a copy of every stored outcome keyed by step.
func (ec *ExecutionContext) Results() map[string]StepOutcome {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	if ec.results == nil {
		return map[string]StepOutcome{}
	}

	return maps.Clone(ec.results)
}
