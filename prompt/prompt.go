// Package prompt assembles model-ready input from system instructions,
// retrieved context, and conversation history under a character budget.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cortexflow/ragcore/memory"
	"github.com/cortexflow/ragcore/vector"
)

type Prompt struct {
	SystemText  string
	ContextText string
	HistoryText string
	UserText    string
}

// Build merges the sections in fixed order: system instructions,
// retrieved context (each chunk labeled with its source), trimmed
// history, then the user message. When the rendered size exceeds
// budgetChars, whole items are dropped until it fits: oldest history
// messages first, then lowest-scoring chunks. The system and user
// texts always survive. budgetChars <= 0 means unlimited.
func Build(systemText string, retrieved []vector.Result, history []memory.Message, userText string, budgetChars int) Prompt {
	for {
		p := Prompt{
			SystemText:  systemText,
			ContextText: renderContext(retrieved),
			HistoryText: renderHistory(history),
			UserText:    userText,
		}

		if budgetChars <= 0 || utf8.RuneCountInString(p.Render()) <= budgetChars {
			return p
		}

		switch {
		case len(history) > 0:
			history = history[1:]
		case len(retrieved) > 0:
			// Results arrive ranked by descending score, so the
			// lowest-scoring chunk is the last one.
			retrieved = retrieved[:len(retrieved)-1]
		default:
			return p
		}
	}
}

// Render flattens the prompt into the single string handed to the
// model. Empty sections are omitted entirely.
func (p Prompt) Render() string {
	var b strings.Builder

	if p.SystemText != "" {
		b.WriteString(p.SystemText)
	}

	if p.ContextText != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Context:\n")
		b.WriteString(p.ContextText)
	}

	if p.HistoryText != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Conversation so far:\n")
		b.WriteString(p.HistoryText)
	}

	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(p.UserText)

	return b.String()
}

func renderContext(retrieved []vector.Result) string {
	if len(retrieved) == 0 {
		return ""
	}

	parts := make([]string, len(retrieved))
	for i, r := range retrieved {
		parts[i] = fmt.Sprintf("[source: %s]\n%s", r.Entry.SourceID, r.Entry.Text)
	}

	return strings.Join(parts, "\n\n")
}

func renderHistory(history []memory.Message) string {
	if len(history) == 0 {
		return ""
	}

	parts := make([]string, len(history))
	for i, m := range history {
		parts[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}

	return strings.Join(parts, "\n")
}
