package forge

import (
	"encoding/json"
	"strconv"
	"strings"
)

// API request/response types for OpenAI-compatible chat completions.

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type respFormat struct {
	Type string `json:"type"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// problemJSON is the expected JSON structure from the model, shared by both
// backends.
type problemJSON struct {
	Prompt        string       `json:"prompt"`
	AnswerKey     flexString   `json:"answer_key"`
	Options       []flexString `json:"options"`
	SolutionSteps []string     `json:"solution_steps"`
	Explanation   string       `json:"explanation"`
	Difficulty    int          `json:"difficulty"`
	Concepts      []string     `json:"concepts"`
}

// flexString accepts a JSON string or number. Models often emit numeric
// answers unquoted.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}
