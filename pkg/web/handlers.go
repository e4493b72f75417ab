// Package web provides the HTTP API for running billing workflows.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Executor runs workflows. *workflow.Engine satisfies it.
type Executor interface {
	Execute(
		ctx context.Context,
		name string,
		input map[string]any,
		caller models.Identity,
		opts ...workflow.ExecuteOption,
	) (*models.WorkflowResult, error)
}

// Catalog lists the registered workflows. *workflow.Registry satisfies it.
type Catalog interface {
	Names() []string
	Definition(name string) (models.WorkflowDefinition, bool)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	executor  Executor
	catalog   Catalog
	health    HealthChecker
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	executor Executor,
	catalog Catalog,
	health HealthChecker,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		executor:  executor,
		catalog:   catalog,
		health:    health,
		validator: validator,
		logger:    logger,
	}
}

// Register mounts the API routes on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Get("/:name", h.GetWorkflow)
	w.Post("/:name/execute", h.ExecuteWorkflow)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	names := h.catalog.Names()
	workflows := make([]WorkflowSummary, 0, len(names))

	for _, name := range names {
		if def, ok := h.catalog.Definition(name); ok {
			workflows = append(workflows, newWorkflowSummary(def))
		}
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	def, ok := h.catalog.Definition(c.Params("name"))
	if !ok {
		return notFound(c, "workflow not found")
	}

	return c.JSON(newWorkflowSummary(def))
}

// ExecuteWorkflow runs a workflow and maps its status onto the response:
// completed is 200, requires_confirmation is 202 and failed is 422.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Workflow name is required")
	}

	var req ExecuteWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executor.Execute(c.Context(), name, req.Input, req.User,
		workflow.WithIPAddress(c.IP()),
		workflow.WithUserAgent(c.Get(fiber.HeaderUserAgent)),
	)

	switch {
	case workflow.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")
	case err != nil:
		h.logger.ErrorContext(c.Context(), "Workflow execution fault", "workflow", name, "error", err)

		return internalError(c, err)
	}

	switch result.Status {
	case models.WorkflowStatusCompleted:
		return c.Status(fiber.StatusOK).JSON(newExecuteWorkflowResponse(result))
	case models.WorkflowStatusRequiresConfirmation:
		return c.Status(fiber.StatusAccepted).JSON(newExecuteWorkflowResponse(result))
	default:
		return runFailed(c, result)
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Hesab API is healthy"
	httpStatus := http.StatusOK
	persistenceCheck := "ok"

	if err := h.health.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Hesab API is unhealthy"
		httpStatus = http.StatusServiceUnavailable
		persistenceCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": persistenceCheck,
			"workflows":   len(h.catalog.Names()),
		},
		"timestamp": time.Now().UTC(),
	})
}
