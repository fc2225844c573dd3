package forge

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/suykerbuyk/verve/internal/problem"
)

// DefaultGeminiModel is used when the configured model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GenAIGenerator generates problems with Gemini.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a Gemini generator. baseURL overrides the API endpoint
// and is normally empty.
func NewGenAI(ctx context.Context, model, apiKey, baseURL string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GenAI API key is required", ErrDisabled)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}

	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Name() string { return "gemini:" + g.model }

// Generate requests one problem.
func (g *GenAIGenerator) Generate(ctx context.Context, req Request) (problem.Spec, error) {
	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(buildUserPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.3),
		},
	)
	if err != nil {
		return problem.Spec{}, fmt.Errorf("GenAI generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return problem.Spec{}, fmt.Errorf("empty GenAI response")
	}
	return decodeProblem(text, req)
}
