package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/suykerbuyk/verve/internal/problem"
)

// HTTPGenerator talks to an OpenAI-compatible chat completions endpoint.
type HTTPGenerator struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewHTTP returns a generator for baseURL. A nil client uses
// http.DefaultClient; deadlines come from the request context.
func NewHTTP(baseURL, model, apiKey string, client *http.Client) *HTTPGenerator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  client,
	}
}

func (g *HTTPGenerator) Name() string { return "openai:" + g.model }

// Generate requests one problem.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (problem.Spec, error) {
	reqBody := chatRequest{
		Model:       g.model,
		Messages:    buildMessages(req),
		Temperature: 0.3,
		ResponseFormat: &respFormat{
			Type: "json_object",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return problem.Spec{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return problem.Spec{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return problem.Spec{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return problem.Spec{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return problem.Spec{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return parseResponse(respBody, req)
}

func parseResponse(body []byte, req Request) (problem.Spec, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return problem.Spec{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return problem.Spec{}, fmt.Errorf("API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return problem.Spec{}, fmt.Errorf("empty choices in response")
	}

	return decodeProblem(resp.Choices[0].Message.Content, req)
}
