package web

import (
	"time"

	"github.com/dukex/hesab/pkg/models"
)

// ExecuteWorkflowRequest is the body of POST /workflows/:name/execute.
type ExecuteWorkflowRequest struct {
	User  models.Identity `json:"user"`
	Input map[string]any  `json:"input"`
}

// ExecuteWorkflowResponse reports a committed or paused run.
type ExecuteWorkflowResponse struct {
	ExecutionID          string                        `json:"execution_id"`
	Workflow             string                        `json:"workflow"`
	Status               models.WorkflowStatus         `json:"status"`
	Data                 map[string]models.StepOutcome `json:"data"`
	Errors               []string                      `json:"errors"`
	StepsCompleted       []string                      `json:"steps_completed"`
	ConfirmationRequired bool                          `json:"confirmation_required"`
	ConfirmationMessage  string                        `json:"confirmation_message,omitempty"`
	ExecutionTimeMs      int64                         `json:"execution_time_ms"`
	StartedAt            time.Time                     `json:"started_at"`
}

func newExecuteWorkflowResponse(result *models.WorkflowResult) ExecuteWorkflowResponse {
	return ExecuteWorkflowResponse{
		ExecutionID:          result.ExecutionID,
		Workflow:             result.Workflow,
		Status:               result.Status,
		Data:                 result.Data,
		Errors:               result.Errors,
		StepsCompleted:       result.StepsCompleted,
		ConfirmationRequired: result.ConfirmationRequired,
		ConfirmationMessage:  result.ConfirmationMessage,
		ExecutionTimeMs:      result.ExecutionTime.Milliseconds(),
		StartedAt:            result.StartedAt,
	}
}

// WorkflowSummary describes a registered workflow without its handlers.
type WorkflowSummary struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Steps       []StepSummary `json:"steps"`
}

// StepSummary describes one step of a workflow.
type StepSummary struct {
	Name                 string   `json:"name"`
	Required             bool     `json:"required"`
	TimeoutMs            int64    `json:"timeout_ms"`
	RetryCount           int      `json:"retry_count"`
	Dependencies         []string `json:"dependencies"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
}

func newWorkflowSummary(def models.WorkflowDefinition) WorkflowSummary {
	steps := make([]StepSummary, 0, len(def.Steps))

	for _, step := range def.Steps {
		deps := step.Dependencies
		if deps == nil {
			deps = []string{}
		}

		steps = append(steps, StepSummary{
			Name:                 step.Name,
			Required:             step.Required,
			TimeoutMs:            step.Timeout.Milliseconds(),
			RetryCount:           step.RetryCount,
			Dependencies:         deps,
			RequiresConfirmation: step.RequiresConfirmation,
		})
	}

	return WorkflowSummary{Name: def.Name, Description: def.Description, Steps: steps}
}
