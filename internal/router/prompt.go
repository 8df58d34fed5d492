package router

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
)

const promptHeader = `You are a helpful AI receptionist for a salon and spa business.`

const promptFooter = `Answer customer questions professionally and helpfully. If you are not confident about an answer or do not have enough information, indicate low confidence.

Respond with a JSON object containing:
- "answer": your response to the customer
- "confidence": a number between 0 and 1 indicating your confidence

Be conversational and friendly, but concise.`

// SystemPrompt builds the generative prompt with at most limit knowledge
// snippets.
func SystemPrompt(hits []knowledge.Item, limit int) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n")

	if len(hits) > limit {
		hits = hits[:limit]
	}
	if len(hits) > 0 {
		b.WriteString("Use this knowledge base to answer questions:\n\n")
		for i, it := range hits {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "Q: %s\nA: %s", it.Question, it.Answer)
		}
		b.WriteString("\n\n")
	}
	b.WriteString(promptFooter)
	return b.String()
}

// ModelAnswer is the structured reply requested from the model.
type ModelAnswer struct {
	Answer     string   `json:"answer"`
	Confidence *float64 `json:"confidence"`
}

// Answer is a parsed model reply with confidence resolved.
type Answer struct {
	Answer     string
	Confidence float64
}

const unparsedConfidence = 0.5

// ParseAnswer extracts answer and confidence from raw model output. Output
// that is not the requested JSON object is used verbatim at confidence 0.5,
// as is a missing confidence. It reports false only for empty output.
func ParseAnswer(raw string) (Answer, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Answer{}, false
	}

	var parsed ModelAnswer
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return Answer{Answer: text, Confidence: unparsedConfidence}, true
	}

	out := Answer{Answer: strings.TrimSpace(parsed.Answer), Confidence: unparsedConfidence}
	if out.Answer == "" {
		out.Answer = text
	}
	if parsed.Confidence != nil {
		out.Confidence = *parsed.Confidence
	}
	return out, true
}

// stripFences removes a surrounding markdown code fence such as ```json.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
