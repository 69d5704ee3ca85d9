package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/daikw/improv/internal/narration"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

func voicesCommand() *cli.Command {
	return &cli.Command{
		Name:   "voices",
		Usage:  "List narration voices of a TTS provider",
		Action: handleVoices,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "TTS provider: " + strings.Join(narration.Providers(), ", "),
				Value:   "openai",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "API key for OpenAI (or OPENAI_API_KEY)",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "AWS region for Polly",
				Value: "us-east-1",
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Only list voices whose language starts with this code",
			},
		},
	}
}

func handleVoices(ctx context.Context, c *cli.Command) error {
	s, err := narration.NewSynthesizer(ctx, narration.Config{
		Provider: c.String("provider"),
		APIKey:   c.String("api-key"),
		Region:   c.String("region"),
	})
	if err != nil {
		return err
	}

	voices, err := s.ListVoices(ctx)
	if err != nil {
		return err
	}

	lang := strings.ToLower(c.String("language"))
	fmt.Printf("Voices for %s:\n", s.Name())
	for _, v := range voices {
		if lang != "" && !strings.HasPrefix(strings.ToLower(v.Language), lang) {
			continue
		}
		fmt.Printf("  %s  %s", color.CyanString(v.ID), v.Language)
		if v.Gender != "" {
			fmt.Printf("  %s", v.Gender)
		}
		if v.Description != "" {
			fmt.Printf("  %s", v.Description)
		}
		fmt.Println()
	}
	return nil
}
