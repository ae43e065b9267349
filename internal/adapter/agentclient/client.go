// Package agentclient provides the HTTP client for streaming turns from the
// agent collaborator over SSE.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mindgate/mindgate/internal/domain"
)

// Event names on the collaborator's SSE stream.
const (
	EventDelta    = "delta"
	EventToolCall = "tool_call"
	EventResult   = "result"
	EventError    = "error"
)

// StreamRequest is one turn sent to the collaborator.
type StreamRequest struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
	// ExternalID resumes an existing conversation when non-empty.
	ExternalID string `json:"external_id,omitempty"`
	// Model optionally overrides the collaborator's default model.
	Model string `json:"model,omitempty"`
}

// Event is one parsed event from the collaborator stream.
type Event struct {
	Type string

	// Delta text, for delta events.
	Delta string

	// ToolCallID and Tool, for tool_call events.
	ToolCallID string
	Tool       domain.ToolDescriptor

	// Result, for the terminal result event.
	Result *Result

	// Code and Message, for error events.
	Code    string
	Message string
}

// Result is the collaborator's terminal payload for a turn.
type Result struct {
	Status string `json:"status"`
	// ExternalID is the conversation handle for resuming this context.
	ExternalID string `json:"external_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

// ToolDecision is the verdict the handler returns for a tool_call event.
// It is delivered back to the collaborator before the stream continues.
type ToolDecision struct {
	Allow  bool   `json:"-"`
	Reason string `json:"reason,omitempty"`
}

// Handler receives each stream event in order. The returned decision is
// consulted only for tool_call events.
type Handler func(ev Event) (ToolDecision, error)

// AgentClient streams turns from the agent collaborator.
type AgentClient interface {
	Stream(ctx context.Context, req *StreamRequest, handler Handler) error
	Ping(ctx context.Context) error
}

// Client is the HTTP implementation of AgentClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the given collaborator base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for streaming
		},
	}
}

var _ AgentClient = (*Client)(nil)

// Stream posts a turn and consumes the SSE response, invoking the handler
// for each event. Tool decisions are posted back on a side channel keyed by
// the tool call ID; the collaborator holds the tool until it hears one.
func (c *Client) Stream(ctx context.Context, req *StreamRequest, handler Handler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", domain.ErrCollaboratorUnavailable, resp.StatusCode, string(bodyBytes))
	}

	return c.parseSSE(ctx, resp.Body, handler)
}

type rawEvent struct {
	Event string
	Data  string
}

// parseSSE parses the SSE stream and dispatches each event.
func (c *Client) parseSSE(ctx context.Context, reader io.Reader, handler Handler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var raw rawEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if raw.Event != "" || raw.Data != "" {
				if err := c.dispatch(ctx, raw, handler); err != nil {
					return err
				}
				raw = rawEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			raw.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if raw.Data != "" {
				raw.Data += "\n" + data
			} else {
				raw.Data = data
			}
		}
		// Ignore comments (lines starting with :) and other fields
	}

	if raw.Event != "" || raw.Data != "" {
		if err := c.dispatch(ctx, raw, handler); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func (c *Client) dispatch(ctx context.Context, raw rawEvent, handler Handler) error {
	ev, err := parseEvent(raw)
	if err != nil {
		return err
	}

	decision, err := handler(ev)
	if err != nil {
		return err
	}
	if ev.Type == EventToolCall {
		if err := c.postDecision(ctx, ev.ToolCallID, decision); err != nil {
			return err
		}
	}
	return nil
}

func parseEvent(raw rawEvent) (Event, error) {
	ev := Event{Type: raw.Event}
	switch raw.Event {
	case EventDelta:
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &payload); err != nil {
			return ev, fmt.Errorf("failed to parse delta event: %w", err)
		}
		ev.Delta = payload.Text
	case EventToolCall:
		var payload struct {
			ToolCallID string          `json:"tool_call_id"`
			Name       string          `json:"name"`
			Args       json.RawMessage `json:"args"`
			Risk       string          `json:"risk"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &payload); err != nil {
			return ev, fmt.Errorf("failed to parse tool_call event: %w", err)
		}
		ev.ToolCallID = payload.ToolCallID
		ev.Tool = domain.ToolDescriptor{
			Name: payload.Name,
			Args: payload.Args,
			Risk: domain.RiskTag(payload.Risk),
		}
	case EventResult:
		var payload Result
		if err := json.Unmarshal([]byte(raw.Data), &payload); err != nil {
			return ev, fmt.Errorf("failed to parse result event: %w", err)
		}
		ev.Result = &payload
	case EventError:
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &payload); err != nil {
			return ev, fmt.Errorf("failed to parse error event: %w", err)
		}
		ev.Code = payload.Code
		ev.Message = payload.Message
	}
	return ev, nil
}

// postDecision delivers an allow/deny verdict for a held tool call.
func (c *Client) postDecision(ctx context.Context, toolCallID string, decision ToolDecision) error {
	verdict := "deny"
	if decision.Allow {
		verdict = "allow"
	}
	body, err := json.Marshal(map[string]string{
		"decision": verdict,
		"reason":   decision.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	url := fmt.Sprintf("%s/v1/tool_calls/%s/decision", c.baseURL, toolCallID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: decision post returned status %d", domain.ErrCollaboratorUnavailable, resp.StatusCode)
	}
	return nil
}

// Ping checks collaborator reachability.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", domain.ErrCollaboratorUnavailable, resp.StatusCode)
	}
	return nil
}
