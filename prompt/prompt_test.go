package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/cortexflow/ragcore/memory"
	"github.com/cortexflow/ragcore/vector"
)

func TestBuildSectionOrder(t *testing.T) {
	assert := assert.New(t)

	retrieved := []vector.Result{
		{Entry: vector.Entry{SourceID: "doc", Text: "the sky is blue"}, Score: 0.9},
	}
	history := []memory.Message{
		{Role: memory.RoleUser, Content: "hi"},
		{Role: memory.RoleAssistant, Content: "hello"},
	}

	p := Build("You are helpful.", retrieved, history, "what color is the sky?", 0)
	rendered := p.Render()

	sys := strings.Index(rendered, "You are helpful.")
	ctx := strings.Index(rendered, "Context:\n[source: doc]\nthe sky is blue")
	hist := strings.Index(rendered, "Conversation so far:\nuser: hi\nassistant: hello")
	user := strings.Index(rendered, "User: what color is the sky?")

	assert.GreaterOrEqual(sys, 0)
	assert.Greater(ctx, sys)
	assert.Greater(hist, ctx)
	assert.Greater(user, hist)
}

func TestRenderOmitsEmptySections(t *testing.T) {
	assert := assert.New(t)

	p := Build("", nil, nil, "just a question", 0)

	assert.Equal("User: just a question", p.Render())
}

func TestBuildDropsOldestHistoryFirst(t *testing.T) {
	assert := assert.New(t)

	retrieved := []vector.Result{
		{Entry: vector.Entry{SourceID: "doc", Text: "kept context"}, Score: 0.9},
	}
	history := []memory.Message{
		{Role: memory.RoleUser, Content: strings.Repeat("old ", 40)},
		{Role: memory.RoleAssistant, Content: "recent"},
	}

	full := Build("sys", retrieved, history, "q", 0)
	budget := utf8.RuneCountInString(full.Render()) - 1

	p := Build("sys", retrieved, history, "q", budget)
	rendered := p.Render()

	assert.NotContains(rendered, "old old")
	assert.Contains(rendered, "assistant: recent")
	assert.Contains(rendered, "kept context")
}

func TestBuildDropsLowestScoredChunkAfterHistory(t *testing.T) {
	assert := assert.New(t)

	retrieved := []vector.Result{
		{Entry: vector.Entry{SourceID: "doc", Text: "high score chunk"}, Score: 0.9},
		{Entry: vector.Entry{SourceID: "doc", Text: strings.Repeat("low ", 40)}, Score: 0.2},
	}

	full := Build("sys", retrieved, nil, "q", 0)
	budget := utf8.RuneCountInString(full.Render()) - 1

	p := Build("sys", retrieved, nil, "q", budget)
	rendered := p.Render()

	assert.Contains(rendered, "high score chunk")
	assert.NotContains(rendered, "low low")
}

func TestBuildSystemAndUserSurvive(t *testing.T) {
	assert := assert.New(t)

	retrieved := []vector.Result{
		{Entry: vector.Entry{SourceID: "doc", Text: "context"}, Score: 0.9},
	}
	history := []memory.Message{
		{Role: memory.RoleUser, Content: "earlier"},
	}

	p := Build("system text", retrieved, history, "user text", 5)
	rendered := p.Render()

	assert.Contains(rendered, "system text")
	assert.Contains(rendered, "User: user text")
	assert.Empty(p.ContextText)
	assert.Empty(p.HistoryText)
}

func TestBuildUnlimitedBudgetKeepsEverything(t *testing.T) {
	assert := assert.New(t)

	retrieved := []vector.Result{
		{Entry: vector.Entry{SourceID: "a", Text: "one"}, Score: 0.9},
		{Entry: vector.Entry{SourceID: "b", Text: "two"}, Score: 0.5},
	}
	history := []memory.Message{
		{Role: memory.RoleUser, Content: "hi"},
	}

	p := Build("sys", retrieved, history, "q", -1)
	rendered := p.Render()

	assert.Contains(rendered, "one")
	assert.Contains(rendered, "two")
	assert.Contains(rendered, "user: hi")
}
