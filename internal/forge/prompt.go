package forge

import (
	"fmt"
	"strings"

	"github.com/suykerbuyk/verve/internal/mode"
)

const systemPrompt = `You write short math practice problems for a tutoring app and reply with JSON.

Respond with valid JSON only. No markdown, no explanation. Schema:
{
  "prompt": "The question shown to the learner.",
  "answer_key": "The exact correct answer, matching one option.",
  "options": ["four", "distinct", "answer", "choices"],
  "solution_steps": ["Step one", "Step two"],
  "explanation": "One or two sentences on why the answer is right.",
  "difficulty": 3,
  "concepts": ["concept-tag"]
}

Rules:
- options: exactly 4 distinct strings; answer_key must be one of them.
- difficulty: an integer from 1 (easiest) to 5 (hardest), matching the request.
- Whole-number answers are preferred.
- explanation is required.`

func buildMessages(req Request) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(req)},
	}
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("## Request\n")
	if req.Zone != "" {
		fmt.Fprintf(&b, "- Zone: %s\n", req.Zone)
	}
	if req.NodeID != "" {
		fmt.Fprintf(&b, "- Curriculum node: %s\n", req.NodeID)
	}
	fmt.Fprintf(&b, "- Difficulty: %d\n", req.Difficulty)
	if len(req.Concepts) > 0 {
		fmt.Fprintf(&b, "- Concepts: %s\n", strings.Join(req.Concepts, ", "))
	}
	if hint := modeHint(req); hint != "" {
		b.WriteString("\n## Style\n")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	return b.String()
}

func modeHint(req Request) string {
	switch req.Mode {
	case mode.Aura:
		return "The learner is reviewing after mistakes. Keep the wording plain and make the solution steps small."
	case mode.Forge:
		return "The learner wants a challenge. Use a multi-step problem with plausible distractors."
	default:
		return ""
	}
}
