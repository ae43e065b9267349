package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgate/mindgate/config"
	"github.com/mindgate/mindgate/internal/adapter/agentclient"
	"github.com/mindgate/mindgate/internal/adapter/voice"
	"github.com/mindgate/mindgate/internal/approval"
	"github.com/mindgate/mindgate/internal/domain"
	"github.com/mindgate/mindgate/internal/ratelimit"
	store "github.com/mindgate/mindgate/internal/repository"
	"github.com/mindgate/mindgate/policy"
)

type testEnv struct {
	service *Service
	store   *store.SQLiteStore
	agent   *agentclient.MockClient
	voice   *voice.MockEngine
	limiter *ratelimit.Limiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:", 100)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	agent := agentclient.NewMockClient()
	voiceEngine := &voice.MockEngine{TranscribeText: "transcribed text", SynthesizedAudio: []byte("audio-bytes")}
	limiter := ratelimit.NewLimiter(0, 0, 0, nil)
	registry := approval.NewRegistry(nil)
	cfg := &config.Config{ApprovalTTL: time.Minute}

	return &testEnv{
		service: New(st, agent, voiceEngine, engine, registry, limiter, cfg),
		store:   st,
		agent:   agent,
		voice:   voiceEngine,
		limiter: limiter,
	}
}

func collect(ch <-chan domain.TurnEvent) []domain.TurnEvent {
	var out []domain.TurnEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func setMode(t *testing.T, env *testEnv, userID string, mode domain.Mode) {
	t.Helper()
	m := string(mode)
	_, err := env.service.UpdateSettings(context.Background(), userID, domain.SettingsPatch{Mode: &m})
	require.NoError(t, err)
}

func textRequest(userID, content string) *domain.ProcessMessageRequest {
	return &domain.ProcessMessageRequest{
		UserID:      userID,
		Content:     []byte(content),
		ContentType: domain.MessageTypeText,
	}
}

func TestTurnAutoAllowsReadOnlyTool(t *testing.T) {
	env := newTestEnv(t)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventDelta, Delta: "thinking"},
		{Type: agentclient.EventToolCall, ToolCallID: "tc-1", Tool: domain.ToolDescriptor{Name: "Read", Args: json.RawMessage(`{"path":"/tmp/x"}`)}},
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1", Text: "answer"}},
	}

	events := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "hi")))

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventTypeDelta, events[0].Type)
	assert.Equal(t, domain.EventTypeToolCall, events[1].Type)
	assert.Equal(t, domain.RiskReadOnly, events[1].Tool.Risk)
	assert.Equal(t, domain.EventTypeResult, events[2].Type)
	assert.True(t, events[2].Result.OK)
	assert.Equal(t, "conv-1", events[2].Result.ExternalID)

	decision, ok := env.agent.DecisionFor("tc-1")
	require.True(t, ok)
	assert.True(t, decision.Allow)

	// The turn recorded the conversation handle on the session.
	session, err := env.store.GetSession(context.Background(), events[2].Result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", session.ExternalID)
}

func TestTurnDeniesMutatingToolInReadOnlyMode(t *testing.T) {
	env := newTestEnv(t)
	setMode(t, env, "u1", domain.ModeReadOnly)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventToolCall, ToolCallID: "tc-1", Tool: domain.ToolDescriptor{Name: "Bash"}},
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1"}},
	}

	events := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "wipe it")))

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventTypeToolCall, events[0].Type)
	assert.Equal(t, domain.EventTypeToolDenied, events[1].Type)
	assert.Equal(t, "policy", events[1].DenyReason)
	assert.Equal(t, domain.EventTypeResult, events[2].Type)

	decision, ok := env.agent.DecisionFor("tc-1")
	require.True(t, ok)
	assert.False(t, decision.Allow)
}

func TestTurnHoldsMutatingToolForApproval(t *testing.T) {
	env := newTestEnv(t)
	setMode(t, env, "u1", domain.ModeApprove)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventToolCall, ToolCallID: "tc-1", Tool: domain.ToolDescriptor{Name: "Write"}},
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1"}},
	}

	ch := env.service.ProcessMessage(context.Background(), textRequest("u1", "write the file"))

	// Approve as soon as the request surfaces.
	var events []domain.TurnEvent
	for ev := range ch {
		events = append(events, ev)
		if ev.Type == domain.EventTypeApprovalRequested {
			require.NoError(t, env.service.ResolveApproval(ev.ApprovalID, "approve"))
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventTypeToolCall, events[0].Type)
	assert.Equal(t, domain.EventTypeApprovalRequested, events[1].Type)
	assert.NotEmpty(t, events[1].ApprovalID)
	assert.Equal(t, domain.EventTypeResult, events[2].Type)

	decision, ok := env.agent.DecisionFor("tc-1")
	require.True(t, ok)
	assert.True(t, decision.Allow)
}

func TestTurnContinuesAfterDeniedApproval(t *testing.T) {
	env := newTestEnv(t)
	setMode(t, env, "u1", domain.ModeApprove)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventToolCall, ToolCallID: "tc-1", Tool: domain.ToolDescriptor{Name: "Edit"}},
		{Type: agentclient.EventDelta, Delta: "skipping that"},
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1"}},
	}

	ch := env.service.ProcessMessage(context.Background(), textRequest("u1", "edit it"))

	var events []domain.TurnEvent
	for ev := range ch {
		events = append(events, ev)
		if ev.Type == domain.EventTypeApprovalRequested {
			require.NoError(t, env.service.ResolveApproval(ev.ApprovalID, "deny"))
		}
	}

	require.Len(t, events, 5)
	assert.Equal(t, domain.EventTypeApprovalRequested, events[1].Type)
	assert.Equal(t, domain.EventTypeToolDenied, events[2].Type)
	assert.Equal(t, "denied", events[2].DenyReason)
	// The turn keeps going after a denial.
	assert.Equal(t, domain.EventTypeDelta, events[3].Type)
	assert.Equal(t, domain.EventTypeResult, events[4].Type)

	decision, ok := env.agent.DecisionFor("tc-1")
	require.True(t, ok)
	assert.False(t, decision.Allow)
}

func TestTurnExpiresUnansweredApproval(t *testing.T) {
	env := newTestEnv(t)
	env.service.config.ApprovalTTL = 20 * time.Millisecond
	setMode(t, env, "u1", domain.ModeApprove)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventToolCall, ToolCallID: "tc-1", Tool: domain.ToolDescriptor{Name: "Bash"}},
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1"}},
	}

	events := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "run it")))

	require.Len(t, events, 4)
	assert.Equal(t, domain.EventTypeToolDenied, events[2].Type)
	assert.Equal(t, "expired", events[2].DenyReason)
	assert.Equal(t, domain.EventTypeResult, events[3].Type)
}

func TestRateLimitedTurnProducesSingleEvent(t *testing.T) {
	env := newTestEnv(t)
	env.service.limiter = ratelimit.NewLimiter(time.Minute, 0, 0, nil)

	first := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "one")))
	require.NotEmpty(t, first)

	second := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "two")))
	require.Len(t, second, 1)
	assert.Equal(t, domain.EventTypeError, second[0].Type)
	assert.Equal(t, "rate_limited", second[0].Code)

	// The collaborator never saw the rejected message.
	assert.Len(t, env.agent.Requests, 1)
}

func TestSwitchToUnknownSessionFailsBeforeStreaming(t *testing.T) {
	env := newTestEnv(t)

	req := textRequest("u1", "hello")
	req.SessionID = "sess_missing"
	events := collect(env.service.ProcessMessage(context.Background(), req))

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeError, events[0].Type)
	assert.Equal(t, "session_not_found", events[0].Code)
	assert.Empty(t, env.agent.Requests)
}

func TestVoiceTurnTranscribesAndSynthesizes(t *testing.T) {
	env := newTestEnv(t)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1", Text: "spoken reply"}},
	}

	req := &domain.ProcessMessageRequest{
		UserID:      "u1",
		Content:     []byte("opus-audio"),
		ContentType: domain.MessageTypeVoice,
	}
	events := collect(env.service.ProcessMessage(context.Background(), req))

	require.Len(t, events, 1)
	result := events[0].Result
	require.NotNil(t, result)
	assert.Equal(t, "spoken reply", result.Text)
	assert.Equal(t, []byte("audio-bytes"), result.Audio)

	// The collaborator received the transcription, not raw audio.
	require.Len(t, env.agent.Requests, 1)
	assert.Equal(t, "transcribed text", env.agent.Requests[0].Prompt)
	assert.Equal(t, []string{"spoken reply"}, env.voice.SynthesizedTexts)
}

func TestStreamWithoutResultFailsTurn(t *testing.T) {
	env := newTestEnv(t)
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventDelta, Delta: "partial"},
	}

	events := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "hi")))

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeError, events[1].Type)
	assert.Equal(t, "collaborator_unavailable", events[1].Code)

	// No result, no session update.
	session, err := env.store.GetOrCreateActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, session.ExternalID)
}

func TestCollaboratorErrorSurfacesDistinctly(t *testing.T) {
	env := newTestEnv(t)
	env.agent.StreamErr = domain.ErrCollaboratorUnavailable

	events := collect(env.service.ProcessMessage(context.Background(), textRequest("u1", "hi")))

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeError, events[0].Type)
	assert.Equal(t, "collaborator_unavailable", events[0].Code)
}

func TestModeOverrideForSingleTurn(t *testing.T) {
	env := newTestEnv(t)
	// Default mode is go_all; override this turn to read_only.
	env.agent.Script = []agentclient.Event{
		{Type: agentclient.EventToolCall, ToolCallID: "tc-1", Tool: domain.ToolDescriptor{Name: "Bash"}},
		{Type: agentclient.EventResult, Result: &agentclient.Result{Status: "ok", ExternalID: "conv-1"}},
	}

	req := textRequest("u1", "try it")
	req.Mode = domain.ModeReadOnly
	events := collect(env.service.ProcessMessage(context.Background(), req))

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventTypeToolDenied, events[1].Type)
	assert.Equal(t, "policy", events[1].DenyReason)
}
