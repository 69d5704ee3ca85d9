package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/daikw/improv/internal/persona"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const (
	FileName = "settings.json"
	Dir      = ".improv"

	// EnvPrefix prefixes every environment override (IMPROV_MODEL_NAME, ...)
	EnvPrefix = "IMPROV"

	DirPermission  = 0755
	FilePermission = 0600
)

// Default endpoints per provider
const (
	DefaultLocalURL       = "http://localhost:11434"
	DefaultOpenAIURL      = "https://api.openai.com/v1"
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co"
)

// Settings holds the generation settings. Changes are read at process start.
type Settings struct {
	EndpointType     persona.EndpointType `json:"endpoint_type" split_words:"true"`
	ModelName        string               `json:"model_name" split_words:"true"`
	LocalEndpointURL string               `json:"local_endpoint_url,omitempty" split_words:"true"`

	OpenAIBaseURL  string `json:"openai_base_url,omitempty" split_words:"true"`
	HuggingFaceURL string `json:"huggingface_url,omitempty" split_words:"true"`
	APIKey         string `json:"api_key,omitempty" split_words:"true"`
	RequestTimeout string `json:"request_timeout,omitempty" split_words:"true"`

	// Illustrations
	ImageProvider persona.EndpointType `json:"image_provider,omitempty" split_words:"true"`
	ImageModel    string               `json:"image_model,omitempty" split_words:"true"`
	ImageDir      string               `json:"image_dir,omitempty" split_words:"true"`

	// Prompt template overrides, see llm.LoadPrompts
	PromptsDir string `json:"prompts_dir,omitempty" split_words:"true"`

	// Story context window for turn generation
	ContextTurns  int `json:"context_turns,omitempty" split_words:"true"`
	ContextTokens int `json:"context_tokens,omitempty" split_words:"true"`
}

// Default returns the settings used when no file exists
func Default() *Settings {
	return &Settings{
		EndpointType:     persona.EndpointLocal,
		ModelName:        "llama3.1",
		LocalEndpointURL: DefaultLocalURL,
		RequestTimeout:   "120s",
		ImageDir:         filepath.Join(Dir, "images"),
		ContextTurns:     24,
	}
}

// ProjectPath returns the project settings path under workDir
func ProjectPath(workDir string) string {
	return filepath.Join(workDir, Dir, FileName)
}

// GlobalPath returns the settings path under the home directory
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, Dir, FileName), nil
}

// Load reads settings from path, or when path is empty from the project file
// falling back to the global file and then to Default. Environment variables
// override file values.
func Load(path string) (*Settings, error) {
	s, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, s); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	return s, nil
}

func loadFile(path string) (*Settings, error) {
	if path != "" {
		s, err := readFile(path)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("path", path).Msg("Loaded settings")
		return s, nil
	}

	candidates := []string{ProjectPath(".")}
	if global, err := GlobalPath(); err == nil {
		candidates = append(candidates, global)
	}

	for _, candidate := range candidates {
		s, err := readFile(candidate)
		if err == nil {
			log.Debug().Str("path", candidate).Msg("Loaded settings")
			return s, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	log.Debug().Msg("No settings file found, using defaults")
	return Default(), nil
}

func readFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("settings file %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Unset fields keep their defaults
	s := Default()
	if err := json.Unmarshal([]byte(persona.ExpandEnv(string(data))), s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return s, nil
}

// Save validates s and writes it to path
func Save(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), DirPermission); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, FilePermission); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	log.Debug().Str("path", path).Msg("Saved settings")
	return nil
}

// Validate checks required fields
func (s *Settings) Validate() error {
	if s.EndpointType == "" {
		return fmt.Errorf("endpoint type is required")
	}
	if _, err := persona.ParseEndpointType(string(s.EndpointType)); err != nil {
		return err
	}
	if s.EndpointType == persona.EndpointLocal && strings.TrimSpace(s.LocalEndpointURL) == "" {
		return fmt.Errorf("local endpoint URL is required for local LLM")
	}
	if strings.TrimSpace(s.ModelName) == "" {
		return fmt.Errorf("model name is required")
	}

	for name, raw := range map[string]string{
		"local endpoint URL": s.LocalEndpointURL,
		"OpenAI base URL":    s.OpenAIBaseURL,
		"Hugging Face URL":   s.HuggingFaceURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q is not a valid URL", name, raw)
		}
	}

	if s.RequestTimeout != "" {
		d, err := time.ParseDuration(s.RequestTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("request timeout %q must be a positive duration", s.RequestTimeout)
		}
	}
	if s.ImageProvider != "" && s.ImageProvider != persona.EndpointOpenAI && s.ImageProvider != persona.EndpointHuggingFace {
		return fmt.Errorf("image provider must be openai or huggingface, got %q", s.ImageProvider)
	}
	if s.ContextTurns < 0 || s.ContextTokens < 0 {
		return fmt.Errorf("context limits cannot be negative")
	}

	return nil
}

// Timeout returns the request timeout, defaulting to two minutes
func (s *Settings) Timeout() time.Duration {
	if d, err := time.ParseDuration(s.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return 120 * time.Second
}

// EndpointFor returns the configured endpoint URL of a provider
func (s *Settings) EndpointFor(provider persona.EndpointType) string {
	switch provider {
	case persona.EndpointLocal:
		return firstNonEmpty(s.LocalEndpointURL, DefaultLocalURL)
	case persona.EndpointOpenAI:
		return firstNonEmpty(s.OpenAIBaseURL, DefaultOpenAIURL)
	case persona.EndpointHuggingFace:
		return firstNonEmpty(s.HuggingFaceURL, DefaultHuggingFaceURL)
	default:
		return ""
	}
}

// BindingFor returns the default binding of provider. The model name and API
// key only apply to the configured endpoint type.
func (s *Settings) BindingFor(provider persona.EndpointType) persona.ModelBinding {
	if provider == "" {
		provider = s.EndpointType
	}

	b := persona.ModelBinding{
		Provider: provider,
		Endpoint: s.EndpointFor(provider),
	}
	if provider == s.EndpointType {
		b.Model = s.ModelName
		b.Credential = s.APIKey
	}
	return b
}

// DefaultBinding is the binding of the story editor
func (s *Settings) DefaultBinding() persona.ModelBinding {
	return s.BindingFor(s.EndpointType)
}

// Masked returns a copy safe to display
func (s *Settings) Masked() *Settings {
	masked := *s
	masked.APIKey = persona.MaskCredential(s.APIKey)
	return &masked
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Keys lists the names accepted by Set
func Keys() []string {
	return []string{
		"endpoint_type", "model_name", "local_endpoint_url",
		"openai_base_url", "huggingface_url", "api_key", "request_timeout",
		"image_provider", "image_model", "image_dir", "prompts_dir",
		"context_turns", "context_tokens",
	}
}

// Set assigns one field by its JSON name. It does not validate.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case "endpoint_type":
		s.EndpointType = persona.EndpointType(strings.ToLower(value))
	case "model_name":
		s.ModelName = value
	case "local_endpoint_url":
		s.LocalEndpointURL = value
	case "openai_base_url":
		s.OpenAIBaseURL = value
	case "huggingface_url":
		s.HuggingFaceURL = value
	case "api_key":
		s.APIKey = value
	case "request_timeout":
		s.RequestTimeout = value
	case "image_provider":
		s.ImageProvider = persona.EndpointType(strings.ToLower(value))
	case "image_model":
		s.ImageModel = value
	case "image_dir":
		s.ImageDir = value
	case "prompts_dir":
		s.PromptsDir = value
	case "context_turns", "context_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be a number, got %q", key, value)
		}
		if key == "context_turns" {
			s.ContextTurns = n
		} else {
			s.ContextTokens = n
		}
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}

// LoadFile reads the settings file at path without environment overrides.
// A missing file yields Default.
func LoadFile(path string) (*Settings, error) {
	s, err := readFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return s, err
}
