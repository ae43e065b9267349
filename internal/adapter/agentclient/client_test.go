package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgate/mindgate/internal/domain"
)

func TestStreamParsesEventsInOrder(t *testing.T) {
	var mu sync.Mutex
	var decisionBodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: delta\n")
			fmt.Fprint(w, "data: {\"text\":\"working on it\"}\n\n")
			fmt.Fprint(w, "event: tool_call\n")
			fmt.Fprint(w, "data: {\"tool_call_id\":\"tc-1\",\"name\":\"Bash\",\"args\":{\"command\":\"ls\"},\"risk\":\"mutating\"}\n\n")
			fmt.Fprint(w, "event: result\n")
			fmt.Fprint(w, "data: {\"status\":\"ok\",\"external_id\":\"conv-9\",\"text\":\"done\"}\n\n")
		case strings.HasPrefix(r.URL.Path, "/v1/tool_calls/"):
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			mu.Lock()
			decisionBodies = append(decisionBodies, r.URL.Path+" "+body["decision"])
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var events []Event
	err := client.Stream(context.Background(), &StreamRequest{UserID: "u1", Prompt: "hi"}, func(ev Event) (ToolDecision, error) {
		events = append(events, ev)
		return ToolDecision{Allow: true}, nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, EventDelta, events[0].Type)
	assert.Equal(t, "working on it", events[0].Delta)

	assert.Equal(t, EventToolCall, events[1].Type)
	assert.Equal(t, "tc-1", events[1].ToolCallID)
	assert.Equal(t, "Bash", events[1].Tool.Name)
	assert.Equal(t, domain.RiskMutating, events[1].Tool.Risk)

	assert.Equal(t, EventResult, events[2].Type)
	assert.Equal(t, "conv-9", events[2].Result.ExternalID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, decisionBodies, 1)
	assert.Equal(t, "/v1/tool_calls/tc-1/decision allow", decisionBodies[0])
}

func TestStreamMultilineData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\n")
		fmt.Fprint(w, "data: {\"code\":\"upstream\",\n")
		fmt.Fprint(w, "data: \"message\":\"boom\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var events []Event
	err := client.Stream(context.Background(), &StreamRequest{}, func(ev Event) (ToolDecision, error) {
		events = append(events, ev)
		return ToolDecision{}, nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "upstream", events[0].Code)
	assert.Equal(t, "boom", events[0].Message)
}

func TestStreamNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Stream(context.Background(), &StreamRequest{}, func(ev Event) (ToolDecision, error) {
		t.Fatal("handler should not run")
		return ToolDecision{}, nil
	})
	require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	require.NoError(t, client.Ping(context.Background()))

	down := NewClient("http://127.0.0.1:1")
	require.ErrorIs(t, down.Ping(context.Background()), domain.ErrCollaboratorUnavailable)
}
