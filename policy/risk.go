package policy

import "github.com/mindgate/mindgate/internal/domain"

// defaultRiskTags maps agent tool names onto risk tags. Tools missing from
// the table get no tag, which the decision table treats as require_approval.
var defaultRiskTags = map[string]domain.RiskTag{
	"Read":         domain.RiskReadOnly,
	"Grep":         domain.RiskReadOnly,
	"Glob":         domain.RiskReadOnly,
	"WebSearch":    domain.RiskReadOnly,
	"WebFetch":     domain.RiskReadOnly,
	"Task":         domain.RiskReadOnly,
	"Bash":         domain.RiskMutating,
	"Write":        domain.RiskMutating,
	"Edit":         domain.RiskMutating,
	"NotebookEdit": domain.RiskMutating,
	"KillShell":    domain.RiskDestructive,
}

// TagRisk fills in the risk tag for a tool descriptor when the agent did not
// provide one. Descriptors that arrive already tagged are left alone.
func TagRisk(tool domain.ToolDescriptor) domain.ToolDescriptor {
	if tool.Risk != "" {
		return tool
	}
	tool.Risk = defaultRiskTags[tool.Name]
	return tool
}
