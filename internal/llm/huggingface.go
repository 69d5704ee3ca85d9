package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	HuggingFaceWhoAmIURL         = "https://huggingface.co/api/whoami-v2"
	DefaultHuggingFaceImageModel = "stabilityai/stable-diffusion-xl-base-1.0"

	// Keeps a turn to a couple of sentences
	huggingFaceMaxNewTokens = 200
)

// HuggingFaceProvider generates text with the Hugging Face Inference API
type HuggingFaceProvider struct {
	apiKey     string
	baseURL    string
	whoamiURL  string
	model      string
	httpClient *http.Client
}

// NewHuggingFaceProvider creates a text generation provider
func NewHuggingFaceProvider(baseURL, model, apiKey string, httpClient *http.Client) *HuggingFaceProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &HuggingFaceProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		whoamiURL:  HuggingFaceWhoAmIURL,
		model:      model,
		httpClient: httpClient,
	}
}

// Name returns the provider name
func (p *HuggingFaceProvider) Name() string {
	return "huggingface"
}

type hfParameters struct {
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
	TopK           int     `json:"top_k,omitempty"`
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters *hfParameters `json:"parameters,omitempty"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// Complete posts to /models/{model} and returns the generated text
func (p *HuggingFaceProvider) Complete(ctx context.Context, req Request) (string, error) {
	inputs := req.Prompt
	if req.System != "" {
		inputs = req.System + "\n\n" + req.Prompt
	}

	body := hfRequest{
		Inputs: inputs,
		Parameters: &hfParameters{
			Temperature:  req.Sampling.Temperature,
			TopP:         req.Sampling.TopP,
			TopK:         req.Sampling.TopK,
			MaxNewTokens: huggingFaceMaxNewTokens,
		},
	}
	if req.Op == OpSummary {
		body.Parameters.MaxNewTokens = 0
	}

	log.Debug().
		Str("model", p.model).
		Str("op", string(req.Op)).
		Int("prompt_bytes", len(inputs)).
		Msg("Making Hugging Face inference request")

	resp, err := p.post(ctx, p.model, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	var generations []hfGeneration
	if err := json.NewDecoder(resp.Body).Decode(&generations); err != nil {
		return "", fmt.Errorf("%w: failed to decode Hugging Face response: %v", ErrGenerationFailed, err)
	}
	if len(generations) == 0 {
		return "", fmt.Errorf("%w: Hugging Face returned no generations", ErrGenerationFailed)
	}

	return generations[0].GeneratedText, nil
}

// Ping checks the access token
func (p *HuggingFaceProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.whoamiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Hugging Face API is not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Hugging Face API error: status %d", resp.StatusCode)
	}
	return nil
}

// post sends a JSON body to a model and returns the response on status 200
func (p *HuggingFaceProvider) post(ctx context.Context, model string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/models/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Hugging Face API error: status %d, body: %s", resp.StatusCode, string(data))
	}

	return resp, nil
}

// HuggingFaceImageGenerator creates illustrations with a text-to-image model
type HuggingFaceImageGenerator struct {
	provider *HuggingFaceProvider
	store    *ImageStore
}

// NewHuggingFaceImageGenerator creates an image generator saving into store
func NewHuggingFaceImageGenerator(baseURL, model, apiKey string, httpClient *http.Client, store *ImageStore) *HuggingFaceImageGenerator {
	if model == "" {
		model = DefaultHuggingFaceImageModel
	}
	return &HuggingFaceImageGenerator{
		provider: NewHuggingFaceProvider(baseURL, model, apiKey, httpClient),
		store:    store,
	}
}

// GenerateImage posts the prompt and stores the returned image bytes
func (g *HuggingFaceImageGenerator) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	resp, err := g.provider.post(ctx, g.provider.model, hfRequest{Inputs: prompt})
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return Image{}, fmt.Errorf("%w: unexpected content type %s", ErrImageGenerationFailed, ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to read image: %v", ErrImageGenerationFailed, err)
	}

	return g.store.Save(data)
}
