package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/daikw/improv/internal/persona"
	"github.com/daikw/improv/internal/settings"
	"github.com/rs/zerolog/log"
)

// ProbeTimeout bounds a single reachability probe
const ProbeTimeout = 10 * time.Second

// Factory builds generators from model bindings, one cached instance per binding
type Factory struct {
	settings   *settings.Settings
	prompts    *Prompts
	metrics    *Metrics
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]Completer
}

// NewFactory creates a factory. Nil prompts and metrics fall back to the
// defaults and to no instrumentation.
func NewFactory(s *settings.Settings, prompts *Prompts, metrics *Metrics) *Factory {
	if s == nil {
		s = settings.Default()
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Factory{
		settings:   s,
		prompts:    prompts,
		metrics:    metrics,
		httpClient: &http.Client{Timeout: s.Timeout()},
		cache:      make(map[string]Completer),
	}
}

// Generator returns the generator of an AI personality
func (f *Factory) Generator(p persona.Personality) (Generator, error) {
	binding, ok := p.Binding()
	if !ok {
		return nil, fmt.Errorf("personality %q has no model binding", p.Name)
	}

	c, err := f.completer(binding)
	if err != nil {
		return nil, err
	}
	return NewStoryteller(c, f.prompts), nil
}

// Editor returns the generator of the story editor, bound to the settings default
func (f *Factory) Editor() (Generator, error) {
	c, err := f.completer(f.settings.DefaultBinding())
	if err != nil {
		return nil, fmt.Errorf("story editor: %w", err)
	}
	return NewStoryteller(c, f.prompts), nil
}

// Probe builds the binding's provider and pings it
func (f *Factory) Probe(ctx context.Context, binding persona.ModelBinding) error {
	c, err := f.completer(binding)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return err
	}

	log.Debug().Str("provider", string(binding.Provider)).Str("model", binding.Model).Msg("Model probe succeeded")
	return nil
}

// Illustrator returns the configured illustrator. The local endpoint type has
// no image model, so image_provider must name openai or huggingface.
func (f *Factory) Illustrator() (Illustrator, error) {
	provider := f.settings.ImageProvider
	if provider == "" {
		provider = f.settings.EndpointType
	}

	binding := f.settings.BindingFor(provider)
	credential, err := resolveCredential(binding)
	if err != nil {
		return nil, err
	}

	store := NewImageStore(f.settings.ImageDir)
	var images ImageGenerator
	model := f.settings.ImageModel

	switch provider {
	case persona.EndpointOpenAI:
		if model == "" {
			model = DefaultOpenAIImageModel
		}
		images = NewOpenAIImageGenerator(binding.Endpoint, model, credential, f.httpClient, store)
	case persona.EndpointHuggingFace:
		if model == "" {
			model = DefaultHuggingFaceImageModel
		}
		images = NewHuggingFaceImageGenerator(binding.Endpoint, model, credential, f.httpClient, store)
	default:
		return nil, fmt.Errorf("image generation is not supported by the %s endpoint type, set image_provider to openai or huggingface", provider)
	}

	return NewIllustrator(f.metrics.InstrumentImages(images, string(provider), model), f.prompts), nil
}

func (f *Factory) completer(binding persona.ModelBinding) (Completer, error) {
	credential, err := resolveCredential(binding)
	if err != nil {
		return nil, err
	}
	binding.Credential = credential

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[binding.Key()]; ok {
		return c, nil
	}

	var c Completer
	switch binding.Provider {
	case persona.EndpointLocal:
		c, err = NewOllamaProvider(binding.Endpoint, binding.Model, f.httpClient)
		if err != nil {
			return nil, err
		}
	case persona.EndpointOpenAI:
		c = NewOpenAIProvider(binding.Endpoint, binding.Model, credential, f.httpClient)
	case persona.EndpointHuggingFace:
		c = NewHuggingFaceProvider(binding.Endpoint, binding.Model, credential, f.httpClient)
	default:
		return nil, fmt.Errorf("unknown provider: %s", binding.Provider)
	}

	c = f.metrics.Instrument(c, binding.Model)
	f.cache[binding.Key()] = c

	log.Debug().
		Str("provider", string(binding.Provider)).
		Str("endpoint", binding.Endpoint).
		Str("model", binding.Model).
		Msg("Created generation client")
	return c, nil
}

// resolveCredential returns the binding's credential or its environment fallback
func resolveCredential(binding persona.ModelBinding) (string, error) {
	if binding.Credential != "" {
		return binding.Credential, nil
	}

	switch binding.Provider {
	case persona.EndpointOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("OpenAI API key not found in model binding or OPENAI_API_KEY environment variable")
	case persona.EndpointHuggingFace:
		if token := os.Getenv("HF_TOKEN"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("Hugging Face token not found in model binding or HF_TOKEN environment variable")
	default:
		return "", nil
	}
}
