package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenAITTSEndpoint = "/audio/speech"
)

// OpenAISynthesizer narrates with the OpenAI Audio API
type OpenAISynthesizer struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAISynthesizer creates an OpenAI narrator
func NewOpenAISynthesizer(apiKey string) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		apiKey:  apiKey,
		baseURL: OpenAIBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name returns the provider name
func (s *OpenAISynthesizer) Name() string {
	return "openai"
}

// ListVoices returns the fixed OpenAI voice set
func (s *OpenAISynthesizer) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "alloy", Name: "Alloy", Language: "en", Gender: "neutral", Description: "Balanced, clear voice"},
		{ID: "echo", Name: "Echo", Language: "en", Gender: "male", Description: "Deep, resonant voice"},
		{ID: "fable", Name: "Fable", Language: "en", Gender: "neutral", Description: "Expressive, storytelling voice"},
		{ID: "onyx", Name: "Onyx", Language: "en", Gender: "male", Description: "Strong, authoritative voice"},
		{ID: "nova", Name: "Nova", Language: "en", Gender: "female", Description: "Bright, energetic voice"},
		{ID: "shimmer", Name: "Shimmer", Language: "en", Gender: "female", Description: "Warm, friendly voice"},
	}, nil
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

// Synthesize posts text to /audio/speech and streams the audio back
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	body := speechRequest{
		Model:          opts.Model,
		Input:          text,
		Voice:          opts.Voice,
		ResponseFormat: opts.Format,
		Speed:          clampSpeed(opts.Speed),
	}
	if body.Model == "" {
		body.Model = "tts-1"
	}
	// Fable suits storytelling
	if body.Voice == "" {
		body.Voice = "fable"
	}
	if body.ResponseFormat == "" {
		body.ResponseFormat = "mp3"
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := s.baseURL + OpenAITTSEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	log.Debug().
		Str("endpoint", endpoint).
		Str("voice", body.Voice).
		Str("model", body.Model).
		Str("format", body.ResponseFormat).
		Float64("speed", body.Speed).
		Msg("Making OpenAI TTS request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OpenAI API error: status %d, body: %s", resp.StatusCode, string(data))
	}

	return resp.Body, nil
}
