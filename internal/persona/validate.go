package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Prober checks that a model binding is reachable and its credential accepted
type Prober interface {
	Probe(ctx context.Context, binding ModelBinding) error
}

// ValidationError names the first personality that failed pre-flight checks
type ValidationError struct {
	Personality string
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.Personality == "" {
		return "invalid roster: " + e.Reason
	}
	return fmt.Sprintf("invalid personality %q: %s", e.Personality, e.Reason)
}

// ValidateRoster checks every personality and probes every AI binding,
// stopping at the first failure. A nil prober skips the remote probe.
func ValidateRoster(ctx context.Context, roster []Personality, prober Prober) error {
	if len(roster) == 0 {
		return &ValidationError{Reason: "at least one personality is required"}
	}

	seen := make(map[string]bool, len(roster))
	for _, p := range roster {
		if p.ID == "" {
			return &ValidationError{Personality: p.Name, Reason: "missing id"}
		}
		if seen[p.ID] {
			return &ValidationError{Personality: p.Name, Reason: "duplicate id " + p.ID}
		}
		if Reserved(p.ID) {
			return &ValidationError{Personality: p.Name, Reason: "id " + p.ID + " is reserved"}
		}
		seen[p.ID] = true

		if err := p.Validate(); err != nil {
			return &ValidationError{Personality: p.Name, Reason: err.Error()}
		}

		binding, ok := p.Binding()
		if !ok {
			continue
		}
		if strings.TrimSpace(binding.Endpoint) == "" {
			return &ValidationError{Personality: p.Name, Reason: "model endpoint is empty"}
		}
		if strings.TrimSpace(binding.Model) == "" {
			return &ValidationError{Personality: p.Name, Reason: "model id is empty"}
		}

		if prober == nil {
			continue
		}
		if err := prober.Probe(ctx, binding); err != nil {
			log.Debug().Err(err).Str("personality", p.Name).Str("provider", string(binding.Provider)).Msg("Model probe failed")
			return &ValidationError{Personality: p.Name, Reason: fmt.Sprintf("model %s is not available: %v", binding.Model, err)}
		}
	}

	return nil
}
