package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mindgate/mindgate/internal/adapter/agentclient"
	"github.com/mindgate/mindgate/internal/domain"
	"github.com/mindgate/mindgate/policy"
)

// errTurnAborted signals that the event consumer went away mid-stream.
var errTurnAborted = errors.New("turn aborted")

// ProcessMessage runs one turn and returns its event sequence. The channel
// is closed after the terminal event. Cancelling ctx abandons the turn and
// expires any approval it is waiting on.
func (s *Service) ProcessMessage(ctx context.Context, req *domain.ProcessMessageRequest) <-chan domain.TurnEvent {
	events := make(chan domain.TurnEvent, 16)
	go func() {
		defer close(events)
		s.runTurn(ctx, req, events)
	}()
	return events
}

func (s *Service) runTurn(ctx context.Context, req *domain.ProcessMessageRequest, events chan<- domain.TurnEvent) {
	// Admission gate. A rejected message produces exactly one event and
	// never reaches the collaborator.
	if allowed, msg := s.limiter.Check(req.UserID); !allowed {
		s.send(ctx, events, errorEvent("rate_limited", msg))
		return
	}

	settings, err := s.store.GetSettings(ctx, req.UserID)
	if err != nil {
		log.Printf("WARN: failed to load settings for %s: %v", req.UserID, err)
		defaults := domain.DefaultSettings(req.UserID)
		settings = &defaults
	}

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.send(ctx, events, errorEvent("session_not_found", err.Error()))
		} else {
			log.Printf("ERROR: session resolution failed for %s: %v", req.UserID, err)
			s.send(ctx, events, errorEvent("internal", "session resolution failed"))
		}
		return
	}

	mode := session.Mode
	if req.Mode != "" {
		mode = req.Mode
	}

	prompt := string(req.Content)
	isVoice := req.ContentType == domain.MessageTypeVoice
	if isVoice {
		prompt, err = s.voiceEngine.Transcribe(ctx, req.Content, settings.Language)
		if err != nil {
			s.send(ctx, events, errorEvent("collaborator_unavailable", fmt.Sprintf("transcription failed: %v", err)))
			return
		}
	}

	streamReq := &agentclient.StreamRequest{
		UserID:     req.UserID,
		Prompt:     prompt,
		ExternalID: session.ExternalID,
		Model:      settings.Model,
	}

	var result *agentclient.Result
	err = s.agentClient.Stream(ctx, streamReq, func(ev agentclient.Event) (agentclient.ToolDecision, error) {
		switch ev.Type {
		case agentclient.EventDelta:
			if !s.send(ctx, events, domain.TurnEvent{Type: domain.EventTypeDelta, Ts: nowMillis(), Delta: ev.Delta}) {
				return agentclient.ToolDecision{}, errTurnAborted
			}
		case agentclient.EventToolCall:
			return s.gateTool(ctx, events, req.UserID, session.SessionID, mode, ev)
		case agentclient.EventResult:
			result = ev.Result
		case agentclient.EventError:
			if !s.send(ctx, events, errorEvent(ev.Code, ev.Message)) {
				return agentclient.ToolDecision{}, errTurnAborted
			}
		}
		return agentclient.ToolDecision{}, nil
	})
	if err != nil && !errors.Is(err, errTurnAborted) {
		if errors.Is(err, domain.ErrCollaboratorUnavailable) {
			s.send(ctx, events, errorEvent("collaborator_unavailable", err.Error()))
		} else {
			log.Printf("ERROR: turn stream failed for %s: %v", req.UserID, err)
			s.send(ctx, events, errorEvent("internal", "turn failed"))
		}
		return
	}
	if err != nil {
		return
	}

	// A stream that ends without a result event is a failed turn; the
	// session record is left untouched.
	if result == nil {
		s.send(ctx, events, errorEvent("collaborator_unavailable", "stream ended without a result"))
		return
	}

	// Bookkeeping is best effort. Events without a conversation handle
	// leave the session record alone.
	if result.ExternalID != "" {
		if err := s.store.UpdateAfterTurn(ctx, session.SessionID, result.ExternalID, time.Now()); err != nil {
			log.Printf("WARN: failed to record turn for session %s: %v", session.SessionID, err)
		}
	}

	turnResult := &domain.TurnResult{
		OK:         result.Status == "ok",
		ExternalID: result.ExternalID,
		SessionID:  session.SessionID,
		Text:       result.Text,
	}
	if isVoice && result.Text != "" {
		audio, err := s.voiceEngine.Synthesize(ctx, result.Text, settings.Language)
		if err != nil {
			log.Printf("WARN: synthesis failed for %s: %v", req.UserID, err)
		} else {
			turnResult.Audio = audio
		}
	}

	s.send(ctx, events, domain.TurnEvent{Type: domain.EventTypeResult, Ts: nowMillis(), Result: turnResult})
}

// gateTool classifies one tool call and blocks on approval when required.
// The returned decision travels back to the collaborator.
func (s *Service) gateTool(ctx context.Context, events chan<- domain.TurnEvent, userID, sessionID string, mode domain.Mode, ev agentclient.Event) (agentclient.ToolDecision, error) {
	tool := policy.TagRisk(ev.Tool)

	if !s.send(ctx, events, domain.TurnEvent{Type: domain.EventTypeToolCall, Ts: nowMillis(), Tool: &tool}) {
		return agentclient.ToolDecision{}, errTurnAborted
	}

	decision, err := s.policyEngine.Classify(ctx, mode, tool)
	if err != nil {
		// A broken policy engine must not auto-allow anything.
		log.Printf("ERROR: policy evaluation failed for %s: %v", tool.Name, err)
		decision = domain.DecisionRequireApproval
	}

	switch decision {
	case domain.DecisionAllow:
		return agentclient.ToolDecision{Allow: true}, nil

	case domain.DecisionDeny:
		if !s.send(ctx, events, deniedEvent(&tool, "", "policy")) {
			return agentclient.ToolDecision{}, errTurnAborted
		}
		return agentclient.ToolDecision{Allow: false, Reason: "blocked by policy"}, nil
	}

	ap := s.approvals.Register(userID, sessionID, tool, s.config.ApprovalTTL)
	requested := domain.TurnEvent{
		Type:       domain.EventTypeApprovalRequested,
		Ts:         nowMillis(),
		Tool:       &tool,
		ApprovalID: ap.ID,
	}
	if !s.send(ctx, events, requested) {
		return agentclient.ToolDecision{}, errTurnAborted
	}

	switch s.approvals.Await(ctx, ap.ID) {
	case domain.ApprovalStatusApproved:
		return agentclient.ToolDecision{Allow: true}, nil
	case domain.ApprovalStatusDenied:
		if !s.send(ctx, events, deniedEvent(&tool, ap.ID, "denied")) {
			return agentclient.ToolDecision{}, errTurnAborted
		}
		return agentclient.ToolDecision{Allow: false, Reason: "denied by user"}, nil
	default:
		if !s.send(ctx, events, deniedEvent(&tool, ap.ID, "expired")) {
			return agentclient.ToolDecision{}, errTurnAborted
		}
		return agentclient.ToolDecision{Allow: false, Reason: "approval expired"}, nil
	}
}

// resolveSession picks the session this turn runs in.
func (s *Service) resolveSession(ctx context.Context, req *domain.ProcessMessageRequest) (*domain.Session, error) {
	if req.SessionID != "" {
		return s.store.Switch(ctx, req.UserID, req.SessionID)
	}
	return s.store.GetOrCreateActive(ctx, req.UserID)
}

// send delivers an event unless the consumer is gone.
func (s *Service) send(ctx context.Context, events chan<- domain.TurnEvent, ev domain.TurnEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorEvent(code, message string) domain.TurnEvent {
	return domain.TurnEvent{Type: domain.EventTypeError, Ts: nowMillis(), Code: code, Message: message}
}

func deniedEvent(tool *domain.ToolDescriptor, approvalID, reason string) domain.TurnEvent {
	return domain.TurnEvent{
		Type:       domain.EventTypeToolDenied,
		Ts:         nowMillis(),
		Tool:       tool,
		ApprovalID: approvalID,
		DenyReason: reason,
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
