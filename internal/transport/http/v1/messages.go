package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindgate/mindgate/internal/domain"
)

type processMessageRequest struct {
	UserID string `json:"user_id"`
	// Content is the text of the message. Ignored when Audio is set.
	Content string `json:"content"`
	// Audio carries a voice message, base64 in JSON.
	Audio     []byte `json:"audio,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// ProcessMessage runs one turn and streams its events back via SSE.
// POST /v1/messages
func (h *Handler) ProcessMessage(c echo.Context) error {
	var req processMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	if req.Content == "" && len(req.Audio) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "content or audio is required"})
	}

	turnReq := &domain.ProcessMessageRequest{
		UserID:      req.UserID,
		Content:     []byte(req.Content),
		ContentType: domain.MessageTypeText,
		SessionID:   req.SessionID,
	}
	if len(req.Audio) > 0 {
		turnReq.Content = req.Audio
		turnReq.ContentType = domain.MessageTypeVoice
	}
	if req.Mode != "" {
		mode, err := domain.ParseMode(req.Mode)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		turnReq.Mode = mode
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	ctx := c.Request().Context()
	for ev := range h.service.ProcessMessage(ctx, turnReq) {
		if err := writeSSEEvent(c, ev); err != nil {
			return err
		}
	}
	return nil
}

// writeSSEEvent writes one turn event in SSE format and flushes.
func writeSSEEvent(c echo.Context, ev domain.TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(c.Response().Writer, "event: %s\n", ev.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
