package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/mcpserver"
	"github.com/daikw/improv/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve games over an HTTP JSON API",
		Action: handleServe,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address",
				Value:   ":8080",
			},
			&cli.BoolFlag{
				Name:  "images",
				Usage: "Allow sessions to illustrate turns",
			},
		},
	}
}

func handleServe(ctx context.Context, c *cli.Command) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(server.Options{
		Manager:      game.NewManager(rt.gameOptions(c.Bool("images"))),
		Settings:     rt.settings,
		SettingsPath: c.String("settings"),
		Registry:     rt.metrics.Registry(),
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, c.String("addr"))
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve games as MCP tools over stdio",
		Action: handleMCP,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "images",
				Usage: "Allow games to illustrate turns",
			},
		},
	}
}

func handleMCP(ctx context.Context, c *cli.Command) error {
	// stdout carries the protocol; keep logs quiet on stderr
	if !c.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}

	manager := game.NewManager(rt.gameOptions(c.Bool("images")))
	return mcpserver.New(manager, rt.settings.BindingFor, version).Serve()
}
