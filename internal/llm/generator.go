// Package llm talks to the text-generation service used for both SQL and
// answer generation.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopqa/shopqa/internal/config"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are the sampling parameters sent with every request.
type Params struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	ContextLength int
}

func DefaultParams() Params {
	return Params{
		MaxTokens:     256,
		Temperature:   0.7,
		TopP:          0.95,
		ContextLength: 2048,
	}
}

func (p Params) withDefaults() Params {
	defaults := DefaultParams()
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaults.MaxTokens
	}
	if p.TopP <= 0 {
		p.TopP = defaults.TopP
	}
	if p.ContextLength <= 0 {
		p.ContextLength = defaults.ContextLength
	}
	return p
}

// New builds the configured backend. Tokens are copied to stream when
// streaming is enabled and stream is not nil.
func New(cfg config.ModelConfig, stream io.Writer) (Generator, error) {
	params := Params{
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		ContextLength: cfg.ContextLength,
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if !cfg.Stream {
		stream = nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.BackendOllama, "":
		return NewOllamaGenerator(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Name,
			Params:     params,
			Stream:     cfg.Stream,
			Output:     stream,
			HTTPClient: httpClient,
		})
	case config.BackendOpenAI:
		return NewOpenAIGenerator(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Name,
			Params:     params,
			Stream:     cfg.Stream,
			Output:     stream,
			HTTPClient: httpClient,
		})
	default:
		return nil, fmt.Errorf("unsupported model backend %q", cfg.Backend)
	}
}

// StripMarkdownSQL removes a surrounding ``` or ```sql fence.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "sql") {
		trimmed = trimmed[3:]
	}
	if end := strings.Index(trimmed, "```"); end >= 0 {
		trimmed = trimmed[:end]
	}
	return strings.TrimSpace(trimmed)
}

// EstimateTokens is a rough count used to keep prompts inside the window.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func checkContextWindow(prompt string, params Params) error {
	needed := EstimateTokens(prompt) + params.MaxTokens
	if needed > params.ContextLength {
		return fmt.Errorf("prompt needs about %d tokens with max_tokens=%d, context length is %d", needed, params.MaxTokens, params.ContextLength)
	}
	return nil
}
