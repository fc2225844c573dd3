package forge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/suykerbuyk/verve/internal/problem"
)

// decodeProblem turns model output into a validated problem for req.
func decodeProblem(content string, req Request) (problem.Spec, error) {
	var pj problemJSON
	if err := json.Unmarshal([]byte(stripFence(content)), &pj); err != nil {
		return problem.Spec{}, fmt.Errorf("unmarshal problem JSON: %w", err)
	}

	spec := problem.Spec{
		ID:            uuid.NewString(),
		NodeID:        req.NodeID,
		Zone:          req.Zone,
		Prompt:        strings.TrimSpace(pj.Prompt),
		AnswerKey:     string(pj.AnswerKey),
		SolutionSteps: pj.SolutionSteps,
		Explanation:   strings.TrimSpace(pj.Explanation),
		Difficulty:    pj.Difficulty,
		Concepts:      pj.Concepts,
	}
	if spec.Difficulty == 0 {
		spec.Difficulty = req.Difficulty
	}
	if len(spec.Concepts) == 0 {
		spec.Concepts = req.Concepts
	}
	for _, o := range pj.Options {
		spec.Options = append(spec.Options, string(o))
	}
	spec.Finalize(problem.ProvenanceAI)

	if err := problem.ValidateGenerated(spec); err != nil {
		return problem.Spec{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return spec, nil
}

// stripFence removes a ```json fence some models add despite instructions.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
