// Package policy evaluates tool-call policy via OPA.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	"github.com/mindgate/mindgate/internal/domain"
)

// Engine is the OPA policy engine. Evaluation is a pure function of the
// prepared rule set and the input; Reload replaces the rule set wholesale so
// no decision ever observes a partially updated policy.
type Engine struct {
	mu    sync.RWMutex
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given policy source into an engine.
func NewEngine(ctx context.Context, policySource string) (*Engine, error) {
	query, err := prepare(ctx, policySource)
	if err != nil {
		return nil, err
	}
	return &Engine{query: query}, nil
}

// Reload replaces the active rule set. The swap is atomic: in-flight
// evaluations finish against the old rules.
func (e *Engine) Reload(ctx context.Context, policySource string) error {
	query, err := prepare(ctx, policySource)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.query = query
	e.mu.Unlock()
	return nil
}

func prepare(ctx context.Context, policySource string) (rego.PreparedEvalQuery, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decisions"),
		rego.Module("tool_policy.rego", policySource),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return query, nil
}

// Classify maps (mode, tool descriptor) onto a decision. The rule set may
// produce several candidate decisions; the most restrictive one wins
// (deny > require_approval > allow). An empty result means no rule matched,
// which defaults to require_approval — fail safe, never fail open.
func (e *Engine) Classify(ctx context.Context, mode domain.Mode, tool domain.ToolDescriptor) (domain.Decision, error) {
	input := map[string]interface{}{
		"mode":      string(mode),
		"tool_name": tool.Name,
		"risk":      string(tool.Risk),
	}
	if len(tool.Args) > 0 {
		var args interface{}
		if err := json.Unmarshal(tool.Args, &args); err == nil {
			input["args"] = args
		}
	}

	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.DecisionRequireApproval, nil
	}

	candidates, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return domain.DecisionRequireApproval, nil
	}

	decision := domain.Decision("")
	for _, c := range candidates {
		s, ok := c.(string)
		if !ok {
			continue
		}
		decision = mostRestrictive(decision, domain.Decision(s))
	}
	if decision == "" {
		decision = domain.DecisionRequireApproval
	}
	return decision, nil
}

// mostRestrictive implements the tie-break ordering
// deny > require_approval > allow.
func mostRestrictive(a, b domain.Decision) domain.Decision {
	rank := func(d domain.Decision) int {
		switch d {
		case domain.DecisionDeny:
			return 3
		case domain.DecisionRequireApproval:
			return 2
		case domain.DecisionAllow:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// DefaultPolicy is the default decision table over (mode, risk tag).
const DefaultPolicy = `
package tool_policy

import rego.v1

known_risks := {"read_only", "mutating", "destructive"}

# go_all: run without asking, except destructive actions.
decisions contains "allow" if {
	input.mode == "go_all"
	input.risk in {"read_only", "mutating"}
}

decisions contains "require_approval" if {
	input.mode == "go_all"
	input.risk == "destructive"
}

# approve: anything that mutates waits for a human.
decisions contains "allow" if {
	input.mode == "approve"
	input.risk == "read_only"
}

decisions contains "require_approval" if {
	input.mode == "approve"
	input.risk in {"mutating", "destructive"}
}

# read_only: mutations are blocked outright.
decisions contains "allow" if {
	input.mode == "read_only"
	input.risk == "read_only"
}

decisions contains "deny" if {
	input.mode == "read_only"
	input.risk in {"mutating", "destructive"}
}

# Unknown risk tags are never auto-allowed.
decisions contains "require_approval" if {
	not input.risk in known_risks
}
`
