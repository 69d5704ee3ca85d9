package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/narration"
	"github.com/daikw/improv/internal/persona"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func playCommand() *cli.Command {
	return &cli.Command{
		Name:    "play",
		Aliases: []string{"p"},
		Usage:   "Play a story game in the terminal",
		Action:  handlePlay,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "cast",
				Aliases: []string{"c"},
				Usage:   "Cast file (default: you and two built-in personalities)",
			},
			&cli.IntFlag{
				Name:    "rounds",
				Aliases: []string{"r"},
				Usage:   "Number of rounds (overrides the cast file)",
			},
			&cli.StringFlag{
				Name:  "seed",
				Usage: "Opening line spoken by the narrator (overrides the cast file)",
			},
			&cli.BoolFlag{
				Name:  "images",
				Usage: "Illustrate each turn",
			},
			&cli.StringFlag{
				Name:  "narrate",
				Usage: "Read the summary aloud with a TTS provider: " + strings.Join(narration.Providers(), ", "),
			},
			&cli.StringFlag{
				Name:  "narrate-out",
				Usage: "Audio file for the narrated summary",
				Value: "story.mp3",
			},
			&cli.StringFlag{
				Name:  "narrate-voice",
				Usage: "Voice ID for narration (provider-specific)",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "AWS region for Polly",
				Value: "us-east-1",
			},
		},
	}
}

func handlePlay(ctx context.Context, c *cli.Command) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}

	cast, err := loadCast(c.String("cast"))
	if err != nil {
		return err
	}
	if c.IsSet("rounds") {
		cast.Rounds = int(c.Int("rounds"))
	}
	if c.IsSet("seed") {
		cast.Seed = c.String("seed")
	}
	if c.IsSet("images") {
		cast.ImageGeneration = c.Bool("images")
	}
	if cast.Rounds == 0 {
		cast.Rounds = 3
	}

	roster, err := persona.NewRoster(cast.Personalities, rt.settings.BindingFor)
	if err != nil {
		return err
	}

	orch := game.New(rt.gameOptions(cast.ImageGeneration))
	orch.SetImageGeneration(cast.ImageGeneration)

	p := &player{
		orch:     orch,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		defaults: rt.settings.BindingFor,
	}

	if provider := c.String("narrate"); provider != "" {
		s, err := narration.NewSynthesizer(ctx, narration.Config{Provider: provider, Region: c.String("region")})
		if err != nil {
			log.Warn().Err(err).Msg("Narration disabled")
		} else {
			p.narrator = s
			p.narrateOut = c.String("narrate-out")
			p.narrateOpts = narration.Options{Voice: c.String("narrate-voice")}
		}
	}

	return p.run(ctx, roster, cast.Rounds, cast.Seed)
}

func loadCast(path string) (*persona.CastFile, error) {
	if path == "" {
		return persona.ExampleCastFile(), nil
	}
	return persona.LoadCastFile(path)
}

var (
	seedColor    = color.New(color.Italic)
	summaryColor = color.New(color.FgCyan, color.Bold)
	humanColor   = color.New(color.FgGreen, color.Bold)
	aiColor      = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
)

// player drives one orchestrator from a terminal
type player struct {
	orch     *game.Orchestrator
	in       *bufio.Reader
	out      io.Writer
	defaults persona.BindingDefaults

	narrator    narration.Synthesizer
	narrateOut  string
	narrateOpts narration.Options

	shown int
}

// run plays games until the user quits or input ends. Only the first start
// is fatal; a later rejected cast is reported and the user chooses again.
func (p *player) run(ctx context.Context, roster []persona.Personality, rounds int, seed string) error {
	var played game.State
	for first := true; ; first = false {
		result, err := p.orch.Start(ctx, roster, rounds, seed)
		switch {
		case err != nil && first:
			return err
		case err != nil:
			errorColor.Fprintf(p.out, "✗ %v\n", err)
		default:
			played = result.State
			p.render(result)

			finished, err := p.playRounds(ctx, result.State)
			if err != nil || !finished {
				return err
			}
			p.narrate(ctx)
		}

		next, err := p.afterGame()
		if err != nil || next == nil {
			return err
		}
		roster, rounds, seed = next.roster, next.rounds, next.seed
		if roster == nil {
			roster = played.Roster
		}
		if rounds == 0 {
			rounds = played.RoundsTarget
		}
	}
}

// playRounds submits turns until the game finishes. It reports false when
// the user quit or input ended.
func (p *player) playRounds(ctx context.Context, state game.State) (bool, error) {
	for state.Status == game.StatusPlaying {
		text := ""
		speaker, _ := state.CurrentSpeaker()

		switch {
		case state.AwaitingSynthesis:
			fmt.Fprintln(p.out, dimColor.Sprintf("%s is writing the summary...", persona.Editor.Name))
		case speaker.IsHuman():
			line, ok := p.prompt(humanColor.Sprintf("%s> ", speaker.Name))
			if !ok {
				return false, nil
			}
			text = line
		default:
			fmt.Fprintln(p.out, dimColor.Sprintf("%s is thinking...", speaker.Name))
		}

		result, err := p.orch.SubmitTurn(ctx, text)
		if err != nil {
			if !p.keepPlaying(err) {
				return false, nil
			}
			state = result.State
			continue
		}

		p.render(result)
		state = result.State
	}
	return state.Status == game.StatusFinished, nil
}

// keepPlaying reports a failed turn and whether to keep playing
func (p *player) keepPlaying(err error) bool {
	var empty *game.EmptyInputError
	if errors.As(err, &empty) {
		errorColor.Fprintln(p.out, err.Error())
		return true
	}

	errorColor.Fprintf(p.out, "✗ %v\n", err)
	answer, ok := p.prompt("[R]etry or [Q]uit? ")
	if !ok {
		return false
	}
	return !strings.EqualFold(answer, "q") && !strings.EqualFold(answer, "quit")
}

type nextGame struct {
	roster []persona.Personality
	rounds int
	seed   string
}

// afterGame asks what to do with a finished game. A nil result means quit.
func (p *player) afterGame() (*nextGame, error) {
	for {
		answer, ok := p.prompt("\n[E]dit cast and continue, [N]ew game, [Q]uit: ")
		if !ok {
			return nil, nil
		}

		switch strings.ToLower(answer) {
		case "e", "edit":
			// A rejected continuation leaves the game in EditingCast
			if p.orch.Snapshot().Status != game.StatusEditingCast {
				if _, err := p.orch.EditCast(); err != nil {
					return nil, err
				}
			}
			next := &nextGame{}
			if path, _ := p.prompt("Cast file (empty keeps the current cast): "); path != "" {
				cast, err := persona.LoadCastFile(path)
				if err == nil {
					next.roster, err = persona.NewRoster(cast.Personalities, p.defaults)
					next.rounds = cast.Rounds
				}
				if err != nil {
					errorColor.Fprintf(p.out, "✗ %v\n", err)
					next.roster = nil
				}
			}
			next.seed, _ = p.prompt("What happens next? (optional): ")
			return next, nil
		case "n", "new":
			if _, err := p.orch.NewGame(); err != nil {
				return nil, err
			}
			p.shown = 0
			seed, _ := p.prompt("Opening line (optional): ")
			return &nextGame{seed: seed}, nil
		case "q", "quit":
			return nil, nil
		default:
			errorColor.Fprintln(p.out, "✗ Invalid choice. Please enter E, N or Q.")
		}
	}
}

func (p *player) prompt(label string) (string, bool) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// render prints turns committed since the last call
func (p *player) render(result game.Result) {
	turns := result.State.Turns
	if p.shown > len(turns) {
		p.shown = 0
	}

	for _, t := range turns[p.shown:] {
		label := t.Speaker.Name
		if t.Speaker.Avatar != "" {
			label = t.Speaker.Avatar + " " + label
		}

		switch {
		case t.Kind == game.TurnSeed:
			fmt.Fprintln(p.out, seedColor.Sprint(t.Text))
		case t.Kind == game.TurnSummary:
			fmt.Fprintf(p.out, "\n%s\n%s\n", summaryColor.Sprint(label), t.Text)
		case t.Speaker.IsHuman():
			fmt.Fprintf(p.out, "%s: %s\n", humanColor.Sprint(label), t.Text)
		default:
			fmt.Fprintf(p.out, "%s: %s\n", aiColor.Sprint(label), t.Text)
		}

		if t.Image != nil {
			fmt.Fprintln(p.out, dimColor.Sprintf("  [image: %s]", t.Image.Path))
		}
	}
	p.shown = len(turns)

	st := result.State
	if st.Status == game.StatusPlaying && !st.AwaitingSynthesis && st.CurrentPlayer == 0 {
		fmt.Fprintln(p.out, dimColor.Sprintf("-- round %d of %d --", st.CurrentRound+1, st.RoundsTarget))
	}
}

// narrate exports the summary. Failures only warn.
func (p *player) narrate(ctx context.Context) {
	if p.narrator == nil {
		return
	}

	summary, ok := p.orch.Snapshot().Summary()
	if !ok {
		return
	}

	if err := narration.Export(ctx, p.narrator, summary.Text, p.narrateOut, p.narrateOpts); err != nil {
		log.Warn().Err(err).Str("provider", p.narrator.Name()).Msg("Narration failed")
		return
	}
	fmt.Fprintf(p.out, "%s Narration saved to %s\n", color.GreenString("✓"), p.narrateOut)
}
