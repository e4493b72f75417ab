package web

import (
	"github.com/dukex/hesab/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

const problemContentType = "application/problem+json"

// RunProblem is the problem document of a failed run. It carries what the
// run did before it aborted.
type RunProblem struct {
	*problems.Problem

	ExecutionID    string   `json:"execution_id"`
	Workflow       string   `json:"workflow"`
	Errors         []string `json:"errors"`
	StepsCompleted []string `json:"steps_completed"`
}

func sendProblem(c fiber.Ctx, status int, problem any) error {
	if err := c.Status(status).JSON(problem); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, problemContentType)

	return nil
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return sendProblem(c, fiber.StatusBadRequest, problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("workflow_not_found").
		WithDetail(detail)

	return sendProblem(c, fiber.StatusNotFound, problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return sendProblem(c, fiber.StatusInternalServerError, problem)
}

func runFailed(c fiber.Ctx, result *models.WorkflowResult) error {
	problem := RunProblem{
		Problem: problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
			WithInstance(c.Path()).
			WithType("workflow_failed").
			WithDetail(result.FirstError()),
		ExecutionID:    result.ExecutionID,
		Workflow:       result.Workflow,
		Errors:         result.Errors,
		StepsCompleted: result.StepsCompleted,
	}

	return sendProblem(c, fiber.StatusUnprocessableEntity, problem)
}
