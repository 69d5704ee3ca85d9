package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/daikw/improv/internal/persona"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

const defaultCastFile = "cast.json"

func castCommand() *cli.Command {
	return &cli.Command{
		Name:  "cast",
		Usage: "Manage personalities and cast files",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List built-in personalities",
				Action:  handleCastList,
			},
			{
				Name:      "init",
				Usage:     "Write an example cast file",
				ArgsUsage: "[path]",
				Action:    handleCastInit,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
			},
		},
	}
}

func handleCastList(ctx context.Context, c *cli.Command) error {
	fmt.Println("Built-in personalities:")
	for _, f := range persona.Builtins() {
		fmt.Printf("  %s\n    %s\n", color.YellowString(f.Name), f.Prompt)
	}
	return nil
}

func handleCastInit(ctx context.Context, c *cli.Command) error {
	path := c.Args().Get(0)
	if path == "" {
		path = defaultCastFile
	}

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	if err := persona.SaveCastFile(path, persona.ExampleCastFile()); err != nil {
		return err
	}

	fmt.Printf("%s Created %s\n", color.GreenString("✓"), path)
	fmt.Printf("Play it with: improv play --cast %s\n", path)
	return nil
}
