package domain

import "errors"

// Sentinel errors for the control plane. Handlers map these onto HTTP
// status codes; the orchestrator maps them onto terminal turn events.
var (
	ErrRateLimited             = errors.New("rate limited")
	ErrSessionNotFound         = errors.New("session not found")
	ErrUnknownMode             = errors.New("unknown mode")
	ErrApprovalNotFound        = errors.New("approval not found")
	ErrApprovalExpired         = errors.New("approval expired")
	ErrApprovalAlreadyResolved = errors.New("approval already resolved")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrInvalidSettings         = errors.New("invalid settings")
)
