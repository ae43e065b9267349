// Package domain defines the core domain models for the control plane.
package domain

import "fmt"

// Mode governs how much tool autonomy the agent is granted in a session.
type Mode string

const (
	// ModeGoAll lets the agent run tools without asking.
	ModeGoAll Mode = "go_all"
	// ModeApprove holds side-effecting tools for human approval.
	ModeApprove Mode = "approve"
	// ModeReadOnly denies anything that mutates state.
	ModeReadOnly Mode = "read_only"
)

// ParseMode validates a mode string against the closed mode set.
// Unknown modes are rejected here so they never reach the policy engine.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGoAll, ModeApprove, ModeReadOnly:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusIdle   SessionStatus = "idle"
	SessionStatusClosed SessionStatus = "closed"
)

// RiskTag classifies what a tool may do. The set is closed; tools with an
// unrecognized tag fall through to the policy engine's fail-safe default.
type RiskTag string

const (
	RiskReadOnly    RiskTag = "read_only"
	RiskMutating    RiskTag = "mutating"
	RiskDestructive RiskTag = "destructive"
)

// Decision is the policy engine's verdict for one tool call.
type Decision string

const (
	DecisionAllow           Decision = "allow"
	DecisionRequireApproval Decision = "require_approval"
	DecisionDeny            Decision = "deny"
)

// ApprovalStatus represents the state of a pending approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDenied   ApprovalStatus = "denied"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// MessageType is the kind of content a user message carries.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
)

// TurnEventType identifies an event emitted while processing one turn.
type TurnEventType string

const (
	EventTypeDelta             TurnEventType = "delta"
	EventTypeToolCall          TurnEventType = "tool_call"
	EventTypeApprovalRequested TurnEventType = "approval_requested"
	EventTypeToolDenied        TurnEventType = "tool_denied"
	EventTypeResult            TurnEventType = "result"
	EventTypeError             TurnEventType = "error"
)
