package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindgate/mindgate/internal/domain"
)

// ListSessions returns the user's non-closed sessions.
// GET /v1/users/:user_id/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	userID := c.Param("user_id")

	sessions, err := h.service.ListSessions(c.Request().Context(), userID)
	if err != nil {
		log.Printf("ERROR: failed to list sessions for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// SwitchSession makes the given session active.
// POST /v1/users/:user_id/sessions/:session_id/switch
func (h *Handler) SwitchSession(c echo.Context) error {
	userID := c.Param("user_id")
	sessionID := c.Param("session_id")

	session, err := h.service.SwitchSession(c.Request().Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		log.Printf("ERROR: failed to switch session %s for %s: %v", sessionID, userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to switch session"})
	}
	return c.JSON(http.StatusOK, session)
}

// ContinueSession resumes the most recent session, creating one if needed.
// POST /v1/users/:user_id/sessions/continue
func (h *Handler) ContinueSession(c echo.Context) error {
	userID := c.Param("user_id")

	session, err := h.service.ContinueSession(c.Request().Context(), userID)
	if err != nil {
		log.Printf("ERROR: failed to continue session for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to continue session"})
	}
	return c.JSON(http.StatusOK, session)
}
