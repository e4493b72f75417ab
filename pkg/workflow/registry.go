package workflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/hesab/pkg/models"
)

// Registry is the fixed catalog of workflows. It is read-only once built and
// safe for concurrent lookups.
type Registry struct {
	workflows map[string]models.WorkflowDefinition
}

// NewRegistry validates defs and freezes them into a catalog.
func NewRegistry(defs ...models.WorkflowDefinition) (*Registry, error) {
	r := &Registry{
		workflows: make(map[string]models.WorkflowDefinition, len(defs)),
	}

	var errs []error

	for _, def := range defs {
		if _, exists := r.workflows[def.Name]; exists {
			errs = append(errs, fmt.Errorf("%w: workflow %q registered twice", ErrInvalidWorkflow, def.Name))

			continue
		}

		if err := validateDefinition(def); err != nil {
			errs = append(errs, err)

			continue
		}

		r.workflows[def.Name] = cloneDefinition(def)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return r, nil
}

// Lookup returns a copy of the ordered steps registered under name.
func (r *Registry) Lookup(name string) ([]models.StepDefinition, bool) {
	def, ok := r.workflows[name]
	if !ok {
		return nil, false
	}

	return cloneDefinition(def).Steps, true
}

// Definition returns the full definition registered under name.
func (r *Registry) Definition(name string) (models.WorkflowDefinition, bool) {
	def, ok := r.workflows[name]
	if !ok {
		return models.WorkflowDefinition{}, false
	}

	return cloneDefinition(def), true
}

// Names returns all registered workflow names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func validateDefinition(def models.WorkflowDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrInvalidWorkflow)
	}

	if len(def.Steps) == 0 {
		return fmt.Errorf("%w: workflow %q has no steps", ErrInvalidWorkflow, def.Name)
	}

	var errs []error

	seen := make(map[string]struct{}, len(def.Steps))

	for i, step := range def.Steps {
		invalid := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("%w: workflow %q step %d (%q): %s",
				ErrInvalidWorkflow, def.Name, i, step.Name, fmt.Sprintf(format, args...)))
		}

		if step.Name == "" {
			invalid("name is required")
		}

		if _, dup := seen[step.Name]; dup {
			invalid("duplicate step name")
		}

		if step.Handler == nil {
			invalid("handler is required")
		}

		if step.Timeout <= 0 {
			invalid("timeout must be positive, got %s", step.Timeout)
		}

		if step.RetryCount < 1 {
			invalid("retry count must be at least 1, got %d", step.RetryCount)
		}

		for _, dep := range step.Dependencies {
			if _, earlier := seen[dep]; !earlier {
				invalid("dependency %q does not name an earlier step", dep)
			}
		}

		seen[step.Name] = struct{}{}
	}

	return errors.Join(errs...)
}

func cloneDefinition(def models.WorkflowDefinition) models.WorkflowDefinition {
	steps := make([]models.StepDefinition, len(def.Steps))
	for i, step := range def.Steps {
		steps[i] = step.Clone()
	}

	def.Steps = steps

	return def
}
