package service

import (
	"fmt"

	"github.com/mindgate/mindgate/internal/approval"
	"github.com/mindgate/mindgate/internal/domain"
)

// ResolveApproval applies a human decision to a pending approval. decision
// is "approve" or "deny". The first resolution wins; the registry reports
// why a later one lost.
func (s *Service) ResolveApproval(approvalID, decision string) error {
	var status domain.ApprovalStatus
	switch decision {
	case "approve":
		status = domain.ApprovalStatusApproved
	case "deny":
		status = domain.ApprovalStatusDenied
	default:
		return fmt.Errorf("invalid decision: %q", decision)
	}
	return s.approvals.Resolve(approvalID, status)
}

// PendingApprovals lists the user's approvals still waiting for a decision.
func (s *Service) PendingApprovals(userID string) []approval.PendingApproval {
	return s.approvals.PendingFor(userID)
}
