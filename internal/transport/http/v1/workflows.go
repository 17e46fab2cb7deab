package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/service"
)

// WorkflowRequest is the request body for creating or updating a workflow.
// On update, absent fields are left unchanged.
type WorkflowRequest struct {
	Name               *string                    `json:"name"`
	Topic              *string                    `json:"topic"`
	AgentSequence      []string                   `json:"agent_sequence"`
	Schedule           *string                    `json:"schedule"`
	Enabled            *bool                      `json:"enabled"`
	NotificationConfig *domain.NotificationConfig `json:"notification_config"`
}

// CreateWorkflow creates a new workflow definition.
// POST /v1/workflows
func (h *Handler) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	params := service.CreateWorkflowParams{
		AgentSequence:      req.AgentSequence,
		Enabled:            req.Enabled,
		NotificationConfig: req.NotificationConfig,
	}
	if req.Name != nil {
		params.Name = *req.Name
	}
	if req.Topic != nil {
		params.Topic = *req.Topic
	}
	if req.Schedule != nil {
		params.Schedule = *req.Schedule
	}

	wf, err := h.service.CreateWorkflow(ctx, params)
	if err != nil {
		return writeServiceError(c, err, "failed to create workflow")
	}
	return c.JSON(http.StatusCreated, wf)
}

// ListWorkflows lists all workflow definitions.
// GET /v1/workflows
func (h *Handler) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := h.service.ListWorkflows(ctx)
	if err != nil {
		return writeServiceError(c, err, "failed to list workflows")
	}
	if workflows == nil {
		workflows = []domain.Workflow{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workflows": workflows})
}

// GetWorkflow gets a workflow by ID.
// GET /v1/workflows/:workflow_id
func (h *Handler) GetWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	wf, err := h.service.GetWorkflow(ctx, workflowID)
	if err != nil {
		return writeServiceError(c, err, "failed to get workflow")
	}
	if wf == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workflow not found"})
	}
	return c.JSON(http.StatusOK, wf)
}

// UpdateWorkflow partially updates a workflow definition.
// PUT /v1/workflows/:workflow_id
func (h *Handler) UpdateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	wf, err := h.service.UpdateWorkflow(ctx, workflowID, service.UpdateWorkflowParams{
		Name:               req.Name,
		Topic:              req.Topic,
		AgentSequence:      req.AgentSequence,
		Schedule:           req.Schedule,
		Enabled:            req.Enabled,
		NotificationConfig: req.NotificationConfig,
	})
	if err != nil {
		return writeServiceError(c, err, "failed to update workflow")
	}
	if wf == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workflow not found"})
	}
	return c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow deletes a workflow definition, keeping its sessions.
// DELETE /v1/workflows/:workflow_id
func (h *Handler) DeleteWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	deleted, err := h.service.DeleteWorkflow(ctx, workflowID)
	if err != nil {
		return writeServiceError(c, err, "failed to delete workflow")
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workflow not found"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}
