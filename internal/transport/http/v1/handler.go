// Package v1 provides the HTTP API for the control plane.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindgate/mindgate/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/messages", h.ProcessMessage)

	e.GET("/v1/users/:user_id/sessions", h.ListSessions)
	e.POST("/v1/users/:user_id/sessions/:session_id/switch", h.SwitchSession)
	e.POST("/v1/users/:user_id/sessions/continue", h.ContinueSession)

	e.GET("/v1/users/:user_id/approvals", h.ListPendingApprovals)
	e.POST("/v1/approvals/:approval_id/decide", h.DecideApproval)

	e.GET("/v1/users/:user_id/settings", h.GetSettings)
	e.PATCH("/v1/users/:user_id/settings", h.UpdateSettings)

	e.GET("/health", h.Health)
}

// Health returns health status including collaborator reachability.
func (h *Handler) Health(c echo.Context) error {
	status := h.service.Health(c.Request().Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
