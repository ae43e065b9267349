package service

import (
	"context"
	"time"
)

// HealthStatus reports collaborator reachability.
type HealthStatus struct {
	Status string `json:"status"`
	Agent  string `json:"agent"`
	Voice  string `json:"voice"`
}

// Health pings the collaborators with a short deadline.
func (s *Service) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := HealthStatus{Status: "ok", Agent: "ok", Voice: "ok"}
	if err := s.agentClient.Ping(ctx); err != nil {
		status.Agent = err.Error()
		status.Status = "degraded"
	}
	if err := s.voiceEngine.Ping(ctx); err != nil {
		status.Voice = err.Error()
		status.Status = "degraded"
	}
	return status
}
