package domain

import "encoding/json"

// ToolDescriptor identifies one tool call the agent wants to make.
type ToolDescriptor struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
	Risk RiskTag         `json:"risk,omitempty"`
}

// ProcessMessageRequest is the input for one turn.
type ProcessMessageRequest struct {
	UserID      string      `json:"user_id"`
	Content     []byte      `json:"content"`
	ContentType MessageType `json:"content_type"`
	// SessionID optionally switches to a specific session before the turn.
	SessionID string `json:"session_id,omitempty"`
	// Mode overrides the session mode for this turn when non-empty.
	Mode Mode `json:"mode,omitempty"`
}

// TurnEvent is one element of the finite event sequence a turn produces.
// Only the fields matching Type are populated.
type TurnEvent struct {
	Type TurnEventType `json:"type"`
	Ts   int64         `json:"ts"`

	// Delta carries free-form progress text from the agent.
	Delta string `json:"delta,omitempty"`

	// Tool is set for tool_call, approval_requested and tool_denied events.
	Tool *ToolDescriptor `json:"tool,omitempty"`

	// ApprovalID is set for approval_requested events and echoed on the
	// tool_denied event when a held tool was denied or expired.
	ApprovalID string `json:"approval_id,omitempty"`

	// DenyReason explains a tool_denied event: "policy", "denied",
	// or "expired".
	DenyReason string `json:"deny_reason,omitempty"`

	// Result is set for the terminal result event.
	Result *TurnResult `json:"result,omitempty"`

	// Code and Message are set for error events.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// TurnResult is the terminal payload of a successful turn.
type TurnResult struct {
	OK bool `json:"ok"`
	// ExternalID is the conversation handle for resuming this context.
	ExternalID string `json:"external_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Text       string `json:"text,omitempty"`
	// Audio is the synthesized reply, present only for voice turns.
	Audio []byte `json:"audio,omitempty"`
}
