package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrNotConfigured is returned when no API key is available. Retrying does
// not help.
var ErrNotConfigured = errors.New("enrichment: text generation not configured")

// Generator produces free text expected to contain one JSON object.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// StatusError reports a non-2xx response from the generation API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("enrichment: generation API returned %d: %s", e.Code, e.Body)
}

// GeminiConfig configures GeminiGenerator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	cfg GeminiConfig
}

// NewGeminiGenerator builds a generator.
func NewGeminiGenerator(cfg GeminiConfig) *GeminiGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiGenerator{cfg: cfg}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"system_instruction"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends one non-streaming request and returns the concatenated
// text of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := g.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	agent := fiber.Post(url)
	agent.Set("x-goog-api-key", g.cfg.APIKey)
	agent.Timeout(timeout)
	agent.JSON(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.prompt()}},
		}},
	})
	if err := agent.Parse(); err != nil {
		return "", fmt.Errorf("enrichment: build request: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("enrichment: generation request: %w", errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return "", &StatusError{Code: code, Body: truncate(string(body), 512)}
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("enrichment: decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", nil
	}
	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
