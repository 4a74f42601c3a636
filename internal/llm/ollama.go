package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaConfig struct {
	BaseURL    string
	Model      string
	Params     Params
	Stream     bool
	Output     io.Writer
	HTTPClient *http.Client
}

// OllamaGenerator calls the Ollama /api/generate endpoint.
type OllamaGenerator struct {
	baseURL string
	model   string
	params  Params
	stream  bool
	output  io.Writer
	client  *http.Client
}

func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OllamaGenerator{
		baseURL: baseURL,
		model:   model,
		params:  cfg.Params.withDefaults(),
		stream:  cfg.Stream,
		output:  cfg.Output,
		client:  client,
	}, nil
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumCtx      int     `json:"num_ctx"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: g.stream,
		Options: ollamaOptions{
			NumPredict:  g.params.MaxTokens,
			Temperature: g.params.Temperature,
			TopP:        g.params.TopP,
			NumCtx:      g.params.ContextLength,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request generation: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generation failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return g.readChunks(resp.Body)
}

// readChunks handles both the single JSON object and the NDJSON stream.
func (g *OllamaGenerator) readChunks(body io.Reader) (string, error) {
	var out strings.Builder
	decoder := json.NewDecoder(body)
	for {
		var chunk ollamaChunk
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("decode generate response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("generation failed: %s", chunk.Error)
		}
		out.WriteString(chunk.Response)
		if g.output != nil && chunk.Response != "" {
			_, _ = io.WriteString(g.output, chunk.Response)
		}
		if chunk.Done {
			break
		}
	}
	return out.String(), nil
}
