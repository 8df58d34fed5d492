package router

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	hits := []knowledge.Item{
		{Question: "Q1?", Answer: "A1"},
		{Question: "Q2?", Answer: "A2"},
		{Question: "Q3?", Answer: "A3"},
		{Question: "Q4?", Answer: "A4"},
	}

	p := SystemPrompt(hits, 3)
	assert.Contains(t, p, "Q: Q1?\nA: A1\n\nQ: Q2?\nA: A2")
	assert.Contains(t, p, "Q: Q3?\nA: A3")
	assert.NotContains(t, p, "Q4?")
	assert.Contains(t, p, `"confidence"`)

	empty := SystemPrompt(nil, 3)
	assert.False(t, strings.Contains(empty, "knowledge base"))
}

func TestParseAnswer(t *testing.T) {
	_, ok := ParseAnswer("")
	assert.False(t, ok)

	a, ok := ParseAnswer(`{"answer":"","confidence":0.3}`)
	assert.True(t, ok)
	assert.Equal(t, `{"answer":"","confidence":0.3}`, a.Answer, "empty answer falls back to raw text")
	assert.Equal(t, 0.3, a.Confidence)

	a, _ = ParseAnswer("```\n{\"answer\":\"hi\",\"confidence\":0.6}\n```")
	assert.Equal(t, "hi", a.Answer)
	assert.Equal(t, 0.6, a.Confidence)

	a, _ = ParseAnswer(`{"answer":"hi","confidence":"high"}`)
	assert.Equal(t, 0.5, a.Confidence)
}
