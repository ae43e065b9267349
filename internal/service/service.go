// Package service implements the control plane orchestration.
package service

import (
	"github.com/mindgate/mindgate/config"
	"github.com/mindgate/mindgate/internal/adapter/agentclient"
	"github.com/mindgate/mindgate/internal/adapter/voice"
	"github.com/mindgate/mindgate/internal/approval"
	"github.com/mindgate/mindgate/internal/ratelimit"
	store "github.com/mindgate/mindgate/internal/repository"
	"github.com/mindgate/mindgate/policy"
)

type Service struct {
	store        store.Store
	agentClient  agentclient.AgentClient
	voiceEngine  voice.Engine
	policyEngine *policy.Engine
	approvals    *approval.Registry
	limiter      *ratelimit.Limiter
	config       *config.Config
}

func New(store store.Store, agentClient agentclient.AgentClient, voiceEngine voice.Engine, policyEngine *policy.Engine, approvals *approval.Registry, limiter *ratelimit.Limiter, cfg *config.Config) *Service {
	return &Service{
		store:        store,
		agentClient:  agentClient,
		voiceEngine:  voiceEngine,
		policyEngine: policyEngine,
		approvals:    approvals,
		limiter:      limiter,
		config:       cfg,
	}
}
