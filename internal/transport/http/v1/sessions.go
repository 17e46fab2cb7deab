package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xqin1/pipeflow/internal/domain"
)

// RunWorkflowRequest is the request body for a manual trigger. Query
// optionally overrides the research prompt for this run only.
type RunWorkflowRequest struct {
	Query string `json:"query"`
}

// RunWorkflow manually triggers a workflow. Returns the queued session
// immediately; execution continues in the background.
// POST /v1/workflows/:workflow_id/run
func (h *Handler) RunWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	var req RunWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.service.StartSession(ctx, workflowID, domain.TriggerManual, req.Query)
	if err != nil {
		return writeServiceError(c, err, "failed to trigger workflow")
	}
	if session == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workflow not found"})
	}
	return c.JSON(http.StatusAccepted, session)
}

// ListSessions lists a workflow's sessions, most recent first.
// GET /v1/workflows/:workflow_id/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	wf, err := h.service.GetWorkflow(ctx, workflowID)
	if err != nil {
		return writeServiceError(c, err, "failed to get workflow")
	}
	if wf == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workflow not found"})
	}

	sessions, err := h.service.ListSessions(ctx, workflowID)
	if err != nil {
		return writeServiceError(c, err, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession gets a session with its stage results.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	session, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		return writeServiceError(c, err, "failed to get session")
	}
	if session == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, session)
}
