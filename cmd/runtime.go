package main

import (
	"fmt"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/llm"
	"github.com/daikw/improv/internal/settings"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// runtime is everything a game needs, built from settings
type runtime struct {
	settings *settings.Settings
	factory  *llm.Factory
	metrics  *llm.Metrics
	window   game.Window
}

func loadSettings(c *cli.Command) (*settings.Settings, error) {
	s, err := settings.Load(c.String("settings"))
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func newRuntime(c *cli.Command) (*runtime, error) {
	s, err := loadSettings(c)
	if err != nil {
		return nil, err
	}

	prompts, err := llm.LoadPrompts(s.PromptsDir)
	if err != nil {
		return nil, err
	}

	window := game.Window{MaxTurns: s.ContextTurns, MaxTokens: s.ContextTokens}
	if s.ContextTokens > 0 {
		counter, err := game.NewTiktokenCounter(game.DefaultEncoding)
		if err != nil {
			return nil, err
		}
		window.Counter = counter
	}

	metrics := llm.NewMetrics(nil)

	log.Debug().
		Str("endpoint_type", string(s.EndpointType)).
		Str("model", s.ModelName).
		Dur("timeout", s.Timeout()).
		Msg("Loaded settings")

	return &runtime{
		settings: s,
		factory:  llm.NewFactory(s, prompts, metrics),
		metrics:  metrics,
		window:   window,
	}, nil
}

// gameOptions wires orchestrators to the factory. The illustrator is only
// built when images are wanted; a misconfigured one is warned about.
func (r *runtime) gameOptions(images bool) game.Options {
	editor := r.settings.DefaultBinding()
	opts := game.Options{
		Resolver: r.factory,
		Prober:   r.factory,
		Editor:   &editor,
		Window:   r.window,
	}
	if !images {
		return opts
	}

	illustrator, err := r.factory.Illustrator()
	if err != nil {
		log.Warn().Err(err).Msg("Image generation unavailable")
		return opts
	}
	opts.Illustrator = illustrator
	return opts
}
