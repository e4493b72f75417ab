package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates the requested workflow is not in the registry.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidWorkflow indicates a workflow definition was rejected at registry build time.
	ErrInvalidWorkflow = errors.New("invalid workflow definition")

	// ErrDependencyNotMet indicates a required step ran before its dependencies completed.
	ErrDependencyNotMet = errors.New("dependency not met")

	// ErrStepTimeout indicates a step attempt did not finish within its timeout.
	ErrStepTimeout = errors.New("step timed out")

	// ErrStepPanicked indicates a step handler panicked.
	ErrStepPanicked = errors.New("step handler panicked")

	// ErrPoolClosed indicates work was submitted after the pool shut down.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrTransaction indicates the unit-of-work provider failed. It is a system
	// fault, distinct from a business-level failed run.
	ErrTransaction = errors.New("transaction failure")
)

// StepError ties a failure to the step that produced it.
type StepError struct {
	Step string // Step name
	Op   string // What the engine was doing (e.g., "dependency", "execute")
	Err  error  // Underlying error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newDependencyError(step, dependency string) *StepError {
	return &StepError{
		Step: step,
		Op:   "dependency",
		Err:  fmt.Errorf("%w: %s", ErrDependencyNotMet, dependency),
	}
}

func newTransactionError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransaction, op, err)
}

// IsSystemFault reports whether err must be treated as an infrastructure
// failure rather than a business outcome.
func IsSystemFault(err error) bool {
	return errors.Is(err, ErrTransaction)
}

// IsWorkflowNotFound checks if an error indicates an unknown workflow name.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsDependencyNotMet checks if an error indicates a dependency gate abort.
func IsDependencyNotMet(err error) bool {
	return errors.Is(err, ErrDependencyNotMet)
}
