// In file: internal/orchestrator/prompt.go
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dileep-u-k/notion-assistant/internal/memory"
)

const basePrompt = `You are a helpful AI assistant with access to the user's Notion workspace through tools.

Instructions:
- Use the tools to look up, create or change Notion pages and databases when the user asks about their Notion content.
- When you do not know a page or database id, use search first. Never invent ids.
- Reference specific pages, databases or entries when applicable.
- If a tool reports an error, correct the arguments and try again, or explain the problem briefly.
- If asked about something outside Notion, use your general knowledge.
- Be conversational and helpful.`

// buildSystemPrompt assembles the system message from the base instructions, any
// configured extra instructions and the retrieved memories.
func buildSystemPrompt(extra []string, memories []memory.Turn) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	for _, line := range extra {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString("\n- ")
			b.WriteString(line)
		}
	}

	if len(memories) > 0 {
		b.WriteString("\n\nPrevious conversation context (most relevant first):")
		for _, m := range memories {
			b.WriteString("\n")
			b.WriteString(formatMemory(m))
		}
	}
	return b.String()
}

func formatMemory(m memory.Turn) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	if m.Role == memory.RoleTool && m.ToolName != "" {
		return fmt.Sprintf("- [tool %s] %s", m.ToolName, content)
	}
	return fmt.Sprintf("- [%s] %s", m.Role, content)
}
