package forge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/suykerbuyk/verve/internal/problem"
)

func TestGenAIGenerator_Generate(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": goodProblem}},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g, err := NewGenAI(context.Background(), "gemini-test", "gk", srv.URL)
	if err != nil {
		t.Fatalf("NewGenAI: %v", err)
	}
	spec, err := g.Generate(context.Background(), Request{Zone: "Beta", Difficulty: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if spec.AnswerKey != "42" || spec.Provenance != problem.ProvenanceAI {
		t.Errorf("spec = %+v", spec)
	}
	if !strings.HasSuffix(gotPath, "models/gemini-test:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "gk" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestNewGenAI_RequiresKey(t *testing.T) {
	if _, err := NewGenAI(context.Background(), "", "", ""); err == nil {
		t.Error("expected error without API key")
	}
}
