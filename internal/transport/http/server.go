// Package http provides the HTTP server for the workflow engine.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xqin1/pipeflow/internal/hub"
	"github.com/xqin1/pipeflow/internal/scheduler"
	"github.com/xqin1/pipeflow/internal/service"
	v1 "github.com/xqin1/pipeflow/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. It exposes workflow
// management, session inspection, live session events and scheduler status.
func NewServer(svc *service.Service, eventHub *hub.Hub, runner *scheduler.Runner) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, eventHub, runner)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}
