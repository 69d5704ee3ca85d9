package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"
)

// OllamaProvider generates text with a local Ollama server
type OllamaProvider struct {
	client   *api.Client
	endpoint string
	model    string
}

// NewOllamaProvider creates a provider for the Ollama server at endpoint
func NewOllamaProvider(endpoint, model string, httpClient *http.Client) (*OllamaProvider, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(endpoint, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Ollama endpoint %q", endpoint)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &OllamaProvider{
		client:   api.NewClient(u, httpClient),
		endpoint: base,
		model:    model,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "local"
}

// Complete calls /api/generate and joins the streamed fragments in order
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	options := map[string]any{}
	if req.Sampling.Temperature > 0 {
		options["temperature"] = req.Sampling.Temperature
	}
	if req.Sampling.TopP > 0 {
		options["top_p"] = req.Sampling.TopP
	}
	if req.Sampling.TopK > 0 {
		options["top_k"] = req.Sampling.TopK
	}

	gen := &api.GenerateRequest{
		Model:   p.model,
		Prompt:  req.Prompt,
		System:  req.System,
		Options: options,
	}

	log.Debug().
		Str("endpoint", p.endpoint).
		Str("model", p.model).
		Str("op", string(req.Op)).
		Int("prompt_bytes", len(req.Prompt)).
		Msg("Making Ollama generate request")

	var sb strings.Builder
	err := p.client.Generate(ctx, gen, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: Ollama API error: %v", ErrGenerationFailed, err)
	}

	return sb.String(), nil
}

// Ping checks that the server answers
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("Ollama server at %s is not reachable: %w", p.endpoint, err)
	}
	return nil
}
