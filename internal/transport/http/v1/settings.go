package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindgate/mindgate/internal/domain"
)

// GetSettings returns the user's settings.
// GET /v1/users/:user_id/settings
func (h *Handler) GetSettings(c echo.Context) error {
	userID := c.Param("user_id")

	settings, err := h.service.GetSettings(c.Request().Context(), userID)
	if err != nil {
		log.Printf("ERROR: failed to get settings for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings applies a partial settings update.
// PATCH /v1/users/:user_id/settings
func (h *Handler) UpdateSettings(c echo.Context) error {
	userID := c.Param("user_id")

	var patch domain.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	settings, err := h.service.UpdateSettings(c.Request().Context(), userID, patch)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSettings) || errors.Is(err, domain.ErrUnknownMode) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		log.Printf("ERROR: failed to update settings for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update settings"})
	}
	return c.JSON(http.StatusOK, settings)
}
