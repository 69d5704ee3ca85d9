package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIImageModel = openai.CreateImageModelDallE3

// OpenAIProvider generates text with the chat completions API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIClient(baseURL, apiKey string, httpClient *http.Client) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	config.HTTPClient = httpClient
	return openai.NewClientWithConfig(config)
}

// NewOpenAIProvider creates a chat provider
func NewOpenAIProvider(baseURL, model, apiKey string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		client: newOpenAIClient(baseURL, apiKey, httpClient),
		model:  model,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends a system and user message and returns the first choice
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}

	log.Debug().
		Str("model", p.model).
		Str("op", string(req.Op)).
		Int("prompt_bytes", len(req.Prompt)).
		Msg("Making OpenAI chat request")

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: float32(req.Sampling.Temperature),
		TopP:        float32(req.Sampling.TopP),
	})
	if err != nil {
		return "", fmt.Errorf("%w: OpenAI API error: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: OpenAI returned no choices", ErrGenerationFailed)
	}

	if resp.Usage.TotalTokens > 0 {
		log.Debug().
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("OpenAI usage")
	}

	return resp.Choices[0].Message.Content, nil
}

// Ping lists models to check the API key
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI API is not available: %w", err)
	}
	return nil
}

// OpenAIImageGenerator creates illustrations with the images API
type OpenAIImageGenerator struct {
	client *openai.Client
	model  string
	store  *ImageStore
}

// NewOpenAIImageGenerator creates an image generator saving into store
func NewOpenAIImageGenerator(baseURL, model, apiKey string, httpClient *http.Client, store *ImageStore) *OpenAIImageGenerator {
	if model == "" {
		model = DefaultOpenAIImageModel
	}
	return &OpenAIImageGenerator{
		client: newOpenAIClient(baseURL, apiKey, httpClient),
		model:  model,
		store:  store,
	}
}

// GenerateImage requests one base64 image and stores it as PNG
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return Image{}, fmt.Errorf("%w: OpenAI API error: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Image{}, fmt.Errorf("%w: OpenAI returned no image data", ErrImageGenerationFailed)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to decode image: %v", ErrImageGenerationFailed, err)
	}

	return g.store.Save(data)
}
