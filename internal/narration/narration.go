package narration

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Synthesizer reads a finished story aloud
type Synthesizer interface {
	// Name returns the provider name
	Name() string

	// ListVoices returns available voices for this provider
	ListVoices(ctx context.Context) ([]Voice, error)

	// Synthesize generates audio from text and returns an audio stream
	Synthesize(ctx context.Context, text string, opts Options) (io.ReadCloser, error)
}

// Voice is a narration voice
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Description string `json:"description,omitempty"`
}

// Options tune one synthesis request. Empty fields use provider defaults.
type Options struct {
	Voice      string  `json:"voice,omitempty"`
	Speed      float64 `json:"speed,omitempty"` // 0.25-4.0
	Format     string  `json:"format,omitempty"`
	Language   string  `json:"language,omitempty"`
	Model      string  `json:"model,omitempty"`       // openai only
	Engine     string  `json:"engine,omitempty"`      // polly only
	SampleRate string  `json:"sample_rate,omitempty"` // Hz
}

// Config selects and configures a provider
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Region   string
}

// Providers returns the supported provider names
func Providers() []string {
	return []string{"openai", "polly", "gcp"}
}

// NewSynthesizer creates the provider named in cfg
func NewSynthesizer(ctx context.Context, cfg Config) (Synthesizer, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		s := NewOpenAISynthesizer(apiKey)
		if cfg.BaseURL != "" {
			s.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
		return s, nil
	case "polly":
		return NewPollySynthesizer(ctx, cfg.Region)
	case "gcp":
		return NewGCPSynthesizer(ctx)
	default:
		return nil, fmt.Errorf("unknown narration provider: %s (supported: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}
}

// Export synthesizes text into the file at path
func Export(ctx context.Context, s Synthesizer, text, path string, opts Options) error {
	if opts.Format == "" {
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			opts.Format = strings.ToLower(ext)
		}
	}

	audio, err := s.Synthesize(ctx, text, opts)
	if err != nil {
		return err
	}
	defer audio.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}

	n, err := io.Copy(f, audio)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	log.Debug().Str("provider", s.Name()).Str("path", path).Int64("bytes", n).Msg("Exported narration")
	return nil
}

// clampSpeed limits speed to 0.25-4.0, defaulting to 1.0
func clampSpeed(speed float64) float64 {
	switch {
	case speed <= 0:
		return 1.0
	case speed < 0.25:
		return 0.25
	case speed > 4.0:
		return 4.0
	default:
		return speed
	}
}
