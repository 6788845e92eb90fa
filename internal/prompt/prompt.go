package prompt

import (
	_ "embed"
	"strings"
)

// Name is the MCP prompt name
const Name = "scout_agent"

//go:embed agent_prompt.md
var agentPrompt string

// AgentPrompt returns the system prompt for the orchestrating agent
func AgentPrompt() string {
	return strings.TrimSpace(agentPrompt)
}

// Build returns the agent prompt followed by the user's request, when given
func Build(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return AgentPrompt()
	}
	return AgentPrompt() + "\n\n## Solicitud del usuario\n\n" + query
}
