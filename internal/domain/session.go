package domain

import "time"

// Session is one conversation context for a user. At most one session per
// user is active at any time; switching promotes the target and demotes the
// previously active session to idle.
type Session struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	// ExternalID is the opaque conversation handle issued by the agent
	// collaborator. Empty until the first turn completes.
	ExternalID string        `json:"external_id,omitempty"`
	Mode       Mode          `json:"mode"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	LastActive time.Time     `json:"last_active"`
}
