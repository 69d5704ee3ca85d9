package llm

import (
	"context"
	"errors"

	"github.com/daikw/improv/internal/persona"
)

var (
	// ErrGenerationFailed wraps every text generation failure
	ErrGenerationFailed = errors.New("text generation failed")

	// ErrImageGenerationFailed wraps every illustration failure
	ErrImageGenerationFailed = errors.New("image generation failed")
)

// Operation labels a completion request
type Operation string

const (
	OpTurn    Operation = "turn"
	OpSummary Operation = "summary"
	OpImage   Operation = "image"
)

// Sampling holds generation options. Zero values are left to the service.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
}

var (
	TurnSampling    = Sampling{Temperature: 0.9, TopP: 1, TopK: 1}
	SummarySampling = Sampling{Temperature: 0.75}
)

// Request is one system+prompt completion
type Request struct {
	Op       Operation
	System   string
	Prompt   string
	Sampling Sampling
}

// Completer is a text generation backend
type Completer interface {
	// Name returns the provider name
	Name() string

	// Complete returns the full generated text. Streamed output is collected
	// before returning.
	Complete(ctx context.Context, req Request) (string, error)

	// Ping checks reachability and credentials
	Ping(ctx context.Context) error
}

// Generator produces story turns and the closing summary
type Generator interface {
	Name() string
	GenerateNextTurn(ctx context.Context, story string, p persona.Personality) (string, error)
	SummarizeStory(ctx context.Context, story string, traits []string) (string, error)
	Ping(ctx context.Context) error
}

// Image is a generated illustration stored on disk
type Image struct {
	Path string `json:"path"`
}

// ImageGenerator turns a prompt into an image
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (Image, error)
}

// Illustrator draws a story turn
type Illustrator interface {
	Illustrate(ctx context.Context, speaker, text string) (Image, error)
}

// Resolver routes personalities to their generators
type Resolver interface {
	Generator(p persona.Personality) (Generator, error)
	Editor() (Generator, error)
}
