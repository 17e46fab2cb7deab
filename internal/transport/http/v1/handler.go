// Package v1 provides the HTTP handlers for the workflow engine API.
package v1

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/hub"
	"github.com/xqin1/pipeflow/internal/scheduler"
	"github.com/xqin1/pipeflow/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	eventHub *hub.Hub
	runner   *scheduler.Runner // nil when the scheduler is not running
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, eventHub *hub.Hub, runner *scheduler.Runner) *Handler {
	return &Handler{
		service:  svc,
		eventHub: eventHub,
		runner:   runner,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Workflow management
	e.POST("/v1/workflows", h.CreateWorkflow)
	e.GET("/v1/workflows", h.ListWorkflows)
	e.GET("/v1/workflows/:workflow_id", h.GetWorkflow)
	e.PUT("/v1/workflows/:workflow_id", h.UpdateWorkflow)
	e.DELETE("/v1/workflows/:workflow_id", h.DeleteWorkflow)

	// Execution
	e.POST("/v1/workflows/:workflow_id/run", h.RunWorkflow)
	e.GET("/v1/workflows/:workflow_id/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/sessions/:session_id/events", h.SessionEvents)

	// Scheduler
	e.GET("/v1/scheduler/status", h.SchedulerStatus)

	e.GET("/health", h.Health)
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// SchedulerStatus reports the tick loop state and the upcoming firings.
// GET /v1/scheduler/status
func (h *Handler) SchedulerStatus(c echo.Context) error {
	ctx := c.Request().Context()

	resp := map[string]interface{}{
		"running": false,
	}
	if h.runner != nil {
		resp["running"] = h.runner.Running()
		resp["tick_interval_ms"] = h.runner.Interval().Milliseconds()
	}

	entries, err := h.service.ScheduleOverview(ctx, time.Now())
	if err != nil {
		log.Printf("ERROR: failed to build schedule overview: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get scheduler status"})
	}
	resp["schedules"] = entries

	return c.JSON(http.StatusOK, resp)
}

// writeServiceError maps domain errors onto HTTP responses.
func writeServiceError(c echo.Context, err error, fallback string) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Message})
	}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, map[string]string{
			"error":      conflict.Error(),
			"session_id": conflict.SessionID,
		})
	}
	log.Printf("ERROR: %s: %v", fallback, err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": fallback})
}
