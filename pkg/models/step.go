package models

import "time"

const (
	DefaultStepTimeout    = 30 * time.Second
	DefaultStepRetryCount = 3
)

// Keys a handler sets on its outcome to pause the run.
const (
	OutcomeNeedsConfirmation   = "needs_confirmation"
	OutcomeConfirmationMessage = "confirmation_message"
)

// StepHandler performs the work of a single step.
type StepHandler func(ec *ExecutionContext) (StepOutcome, error)

// StepOutcome is the data a step hands back to the run.
type StepOutcome map[string]any

// NeedsConfirmation reports whether the handler asked to pause the run.
func (o StepOutcome) NeedsConfirmation() bool {
	v, ok := o[OutcomeNeedsConfirmation].(bool)

	return ok && v
}

// ConfirmationMessage returns the message shown to the caller on pause.
func (o StepOutcome) ConfirmationMessage() string {
	msg, _ := o[OutcomeConfirmationMessage].(string)

	return msg
}

// StepDefinition describes one unit of work. Values are immutable once built
// through NewStep.
type StepDefinition struct {
	Name                 string
	Handler              StepHandler
	Required             bool
	Timeout              time.Duration
	RetryCount           int
	Dependencies         []string
	RequiresConfirmation bool
}

// StepOption customises a StepDefinition.
type StepOption func(*StepDefinition)

// NewStep builds a required step with the default timeout and retry count.
func NewStep(name string, handler StepHandler, opts ...StepOption) StepDefinition {
	step := StepDefinition{
		Name:       name,
		Handler:    handler,
		Required:   true,
		Timeout:    DefaultStepTimeout,
		RetryCount: DefaultStepRetryCount,
	}

	for _, opt := range opts {
		opt(&step)
	}

	return step
}

// Optional marks a step whose failure does not abort the run.
func Optional() StepOption {
	return func(s *StepDefinition) { s.Required = false }
}

// WithTimeout bounds each attempt of the step.
func WithTimeout(d time.Duration) StepOption {
	return func(s *StepDefinition) { s.Timeout = d }
}

// WithRetryCount sets the total number of attempts.
func WithRetryCount(n int) StepOption {
	return func(s *StepDefinition) { s.RetryCount = n }
}

// DependsOn gates the step on earlier steps having completed.
func DependsOn(names ...string) StepOption {
	return func(s *StepDefinition) {
		s.Dependencies = append(append([]string(nil), s.Dependencies...), names...)
	}
}

// RequiresConfirmation lets the step pause the run.
func RequiresConfirmation() StepOption {
	return func(s *StepDefinition) { s.RequiresConfirmation = true }
}

// Clone returns a copy that shares no slices with s.
func (s StepDefinition) Clone() StepDefinition {
	s.Dependencies = append([]string(nil), s.Dependencies...)

	return s
}
