package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindgate/mindgate/internal/approval"
	"github.com/mindgate/mindgate/internal/domain"
)

type approvalDecisionRequest struct {
	// Decision is "approve" or "deny".
	Decision string `json:"decision"`
}

// DecideApproval resolves a pending approval.
// POST /v1/approvals/:approval_id/decide
func (h *Handler) DecideApproval(c echo.Context) error {
	approvalID := c.Param("approval_id")

	var req approvalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Decision != "approve" && req.Decision != "deny" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "decision must be approve or deny"})
	}

	err := h.service.ResolveApproval(approvalID, req.Decision)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"approval_id": approvalID, "decision": req.Decision})
	case errors.Is(err, domain.ErrApprovalNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrApprovalExpired):
		return c.JSON(http.StatusGone, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrApprovalAlreadyResolved):
		// A second decision is a benign race, usually two people tapping at once.
		log.Printf("INFO: late decision for approval %s: %v", approvalID, err)
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

// ListPendingApprovals returns the user's approvals still awaiting a decision.
// GET /v1/users/:user_id/approvals
func (h *Handler) ListPendingApprovals(c echo.Context) error {
	userID := c.Param("user_id")
	pending := h.service.PendingApprovals(userID)
	if pending == nil {
		pending = []approval.PendingApproval{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"approvals": pending})
}
