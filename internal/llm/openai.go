package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Params     Params
	Stream     bool
	Output     io.Writer
	HTTPClient *http.Client
}

// OpenAIGenerator uses an OpenAI-compatible completions endpoint, such as a
// llama.cpp, vLLM or LocalAI server. BaseURL is the API root, including /v1.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	params Params
	stream bool
	output io.Writer
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	clientConfig := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		params: cfg.Params.withDefaults(),
		stream: cfg.Stream,
		output: cfg.Output,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := checkContextWindow(prompt, g.params); err != nil {
		return "", err
	}
	req := openai.CompletionRequest{
		Model:       g.model,
		Prompt:      prompt,
		MaxTokens:   g.params.MaxTokens,
		Temperature: float32(g.params.Temperature),
		TopP:        float32(g.params.TopP),
	}
	if g.stream {
		return g.generateStream(ctx, req)
	}

	resp, err := g.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion choices")
	}
	return resp.Choices[0].Text, nil
}

func (g *OpenAIGenerator) generateStream(ctx context.Context, req openai.CompletionRequest) (string, error) {
	stream, err := g.client.CreateCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receive completion chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		text := chunk.Choices[0].Text
		out.WriteString(text)
		if g.output != nil && text != "" {
			_, _ = io.WriteString(g.output, text)
		}
	}
	return out.String(), nil
}
