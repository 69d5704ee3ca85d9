package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/daikw/improv/internal/persona"
)

// Storyteller renders prompts for a Completer and implements Generator
type Storyteller struct {
	completer Completer
	prompts   *Prompts
}

// NewStoryteller binds a completer to a prompt set; nil prompts use the defaults
func NewStoryteller(c Completer, prompts *Prompts) *Storyteller {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Storyteller{completer: c, prompts: prompts}
}

// Name returns the backing provider name
func (s *Storyteller) Name() string {
	return s.completer.Name()
}

// GenerateNextTurn asks the model for the next one or two sentences spoken by p
func (s *Storyteller) GenerateNextTurn(ctx context.Context, story string, p persona.Personality) (string, error) {
	system, user, err := s.prompts.Turn(TurnData{Story: story, Name: p.Name, Prompt: p.Prompt})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return s.complete(ctx, Request{Op: OpTurn, System: system, Prompt: user, Sampling: TurnSampling})
}

// SummarizeStory retells the whole story as one narrator blending traits
func (s *Storyteller) SummarizeStory(ctx context.Context, story string, traits []string) (string, error) {
	system, user, err := s.prompts.Summary(SummaryData{Story: story, Traits: traits})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return s.complete(ctx, Request{Op: OpSummary, System: system, Prompt: user, Sampling: SummarySampling})
}

// Ping checks the backing provider
func (s *Storyteller) Ping(ctx context.Context) error {
	return s.completer.Ping(ctx)
}

func (s *Storyteller) complete(ctx context.Context, req Request) (string, error) {
	text, err := s.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned an empty response", ErrGenerationFailed, s.completer.Name())
	}
	return text, nil
}

// PromptedIllustrator renders the image prompt before calling an ImageGenerator
type PromptedIllustrator struct {
	images  ImageGenerator
	prompts *Prompts
}

// NewIllustrator wraps an image generator with the image prompt template
func NewIllustrator(images ImageGenerator, prompts *Prompts) *PromptedIllustrator {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &PromptedIllustrator{images: images, prompts: prompts}
}

// Illustrate draws one turn of the story
func (i *PromptedIllustrator) Illustrate(ctx context.Context, speaker, text string) (Image, error) {
	prompt, err := i.prompts.Image(ImageData{Speaker: speaker, Text: text})
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	return i.images.GenerateImage(ctx, prompt)
}
