// agent.go — Agent-prompt output formatter.
// Produces the compact text block an agent loop feeds directly into its
// context window.
package output

import (
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/assemble"
)

// AgentFormatter renders the PageMap as an agent-prompt text block.
type AgentFormatter struct{}

// Format writes the agent-prompt rendering of result.PageMap.
func (a *AgentFormatter) Format(w Writer, result *Result) error {
	text := assemble.AgentPrompt(*result.PageMap)
	if len(text) == 0 || text[len(text)-1] != '\n' {
		text += "\n"
	}
	_, err := w.Write([]byte(text))
	return err
}
