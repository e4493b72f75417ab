// Package models defines the core domain models for billing workflow orchestration
package models

import "time"

// WorkflowStatus represents the state of a single workflow run.
type WorkflowStatus string

const (
	WorkflowStatusPending              WorkflowStatus = "pending"               // Not assigned by the engine
	WorkflowStatusValidating           WorkflowStatus = "validating"            // Not assigned by the engine
	WorkflowStatusProcessing           WorkflowStatus = "processing"            // Not assigned by the engine
	WorkflowStatusCompleted            WorkflowStatus = "completed"             // Terminal, committed
	WorkflowStatusFailed               WorkflowStatus = "failed"                // Terminal, rolled back
	WorkflowStatusRequiresConfirmation WorkflowStatus = "requires_confirmation" // Terminal, caller must resubmit
	WorkflowStatusCancelled            WorkflowStatus = "cancelled"             // Not assigned by the engine
)

// IsTerminal reports whether a run can end in this status.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusRequiresConfirmation:
		return true
	default:
		return false
	}
}

// WorkflowDefinition is a named, ordered list of steps.
type WorkflowDefinition struct {
	Name        string
	Description string
	Steps       []StepDefinition
}

// WorkflowResult is returned to the caller once per run and never mutated afterwards.
type WorkflowResult struct {
	ExecutionID          string                 `json:"execution_id"`
	Workflow             string                 `json:"workflow"`
	Status               WorkflowStatus         `json:"status"`
	Data                 map[string]StepOutcome `json:"data"`
	Errors               []string               `json:"errors"`
	ExecutionTime        time.Duration          `json:"execution_time"`
	StepsCompleted       []string               `json:"steps_completed"`
	ConfirmationRequired bool                   `json:"confirmation_required"`
	ConfirmationMessage  string                 `json:"confirmation_message,omitempty"`
	StartedAt            time.Time              `json:"started_at"`
}

// Succeeded reports whether the run committed without pausing.
func (r *WorkflowResult) Succeeded() bool {
	return r.Status == WorkflowStatusCompleted
}

// FirstError returns the aborting error of a failed run, or the first
// recorded warning otherwise.
func (r *WorkflowResult) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}

	if r.Status == WorkflowStatusFailed {
		return r.Errors[len(r.Errors)-1]
	}

	return r.Errors[0]
}
