package agentclient

import (
	"context"
	"sync"
)

// MockClient replays a scripted event sequence for tests. Tool decisions
// returned by the handler are recorded instead of being posted anywhere.
type MockClient struct {
	mu sync.Mutex

	// Script is the event sequence Stream replays. When nil, Stream emits
	// a single successful result event.
	Script []Event

	// PingErr is returned by Ping when set.
	PingErr error

	// StreamErr aborts Stream before any event when set.
	StreamErr error

	// Requests and Decisions record what the client observed.
	Requests  []StreamRequest
	Decisions map[string]ToolDecision
}

// NewMockClient creates a mock with an empty script.
func NewMockClient() *MockClient {
	return &MockClient{Decisions: make(map[string]ToolDecision)}
}

var _ AgentClient = (*MockClient)(nil)

// Stream replays the script through the handler.
func (m *MockClient) Stream(ctx context.Context, req *StreamRequest, handler Handler) error {
	m.mu.Lock()
	m.Requests = append(m.Requests, *req)
	script := m.Script
	streamErr := m.StreamErr
	m.mu.Unlock()

	if streamErr != nil {
		return streamErr
	}
	if script == nil {
		script = []Event{{
			Type:   EventResult,
			Result: &Result{Status: "ok", ExternalID: "mock-conv", Text: "[MOCK] done"},
		}}
	}

	for _, ev := range script {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		decision, err := handler(ev)
		if err != nil {
			return err
		}
		if ev.Type == EventToolCall {
			m.mu.Lock()
			m.Decisions[ev.ToolCallID] = decision
			m.mu.Unlock()
		}
	}
	return nil
}

// Ping reports the configured health.
func (m *MockClient) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

// DecisionFor returns the recorded decision for a tool call.
func (m *MockClient) DecisionFor(toolCallID string) (ToolDecision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Decisions[toolCallID]
	return d, ok
}
