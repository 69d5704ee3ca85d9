package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/daikw/improv/internal/settings"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show and edit model settings",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show effective settings, including environment overrides",
				Action: handleSettingsShow,
			},
			{
				Name:      "set",
				Usage:     "Set one value in the settings file",
				ArgsUsage: "<key> <value>",
				Action:    handleSettingsSet,
			},
			{
				Name:   "validate",
				Usage:  "Validate settings and probe the default model",
				Action: handleSettingsValidate,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Skip the model probe",
					},
				},
			},
		},
	}
}

// settingsPath is where edits are written: --settings, else the project file
func settingsPath(c *cli.Command) (string, error) {
	if path := c.String("settings"); path != "" {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return settings.ProjectPath(wd), nil
}

func handleSettingsShow(ctx context.Context, c *cli.Command) error {
	s, err := settings.Load(c.String("settings"))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.Masked(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func handleSettingsSet(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: improv settings set <key> <value>")
	}

	path, err := settingsPath(c)
	if err != nil {
		return err
	}

	s, err := settings.LoadFile(path)
	if err != nil {
		return err
	}
	if err := s.Set(c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}
	if err := settings.Save(path, s); err != nil {
		return err
	}

	fmt.Printf("%s Saved %s to %s\n", color.GreenString("✓"), c.Args().Get(0), path)
	fmt.Println("Settings take effect the next time improv starts.")
	return nil
}

func handleSettingsValidate(ctx context.Context, c *cli.Command) error {
	s, err := settings.Load(c.String("settings"))
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		fmt.Printf("%s %v\n", color.RedString("✗"), err)
		return err
	}
	fmt.Printf("%s Settings are valid\n", color.GreenString("✓"))

	if c.Bool("offline") {
		return nil
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	binding := s.DefaultBinding()
	if err := rt.factory.Probe(ctx, binding); err != nil {
		fmt.Printf("%s %s model %s is not reachable: %v\n", color.RedString("✗"), binding.Provider, binding.Model, err)
		return err
	}
	fmt.Printf("%s %s model %s is reachable at %s\n", color.GreenString("✓"), binding.Provider, binding.Model, binding.Endpoint)
	return nil
}
