package game

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/daikw/improv/internal/llm"
	"github.com/daikw/improv/internal/persona"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options wires an Orchestrator to its collaborators
type Options struct {
	// Resolver routes AI personalities and the story editor to generators
	Resolver llm.Resolver

	// Prober checks model bindings on start; nil skips remote checks
	Prober persona.Prober

	// Editor is the story editor's binding. When set and Prober is set it is
	// probed on start, so a closing summary cannot fail on a dead binding.
	Editor *persona.ModelBinding

	// Illustrator draws turns when image generation is on; may be nil
	Illustrator llm.Illustrator

	// Window bounds the story context of generated turns
	Window Window

	// Now stamps turns; defaults to time.Now
	Now func() time.Time
}

// Orchestrator runs one game. All methods are safe for concurrent use; an
// operation arriving while another is in flight fails with ErrBusy.
type Orchestrator struct {
	resolver    llm.Resolver
	prober      persona.Prober
	editor      *persona.ModelBinding
	illustrator llm.Illustrator
	window      Window
	now         func() time.Time

	mu    sync.Mutex
	state State
}

// New creates an orchestrator in the Setup state
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		resolver:    opts.Resolver,
		prober:      opts.Prober,
		editor:      opts.Editor,
		illustrator: opts.Illustrator,
		window:      opts.Window,
		now:         opts.Now,
		state:       State{Status: StatusSetup},
	}
}

// Snapshot returns a copy of the current state
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// SetImageGeneration toggles illustrations for upcoming turns
func (o *Orchestrator) SetImageGeneration(on bool) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.ImageGeneration = on
	return o.state.clone()
}

// Start validates roster and begins play from Setup, or continues the
// current story from EditingCast with the new roster. A non-empty seed
// is added as a narrator turn.
func (o *Orchestrator) Start(ctx context.Context, roster []persona.Personality, rounds int, seed string) (Result, error) {
	o.mu.Lock()
	if err := o.guardLocked("start the game", StatusSetup, StatusEditingCast); err != nil {
		defer o.mu.Unlock()
		return o.resultLocked(nil), err
	}
	if rounds < 1 {
		defer o.mu.Unlock()
		return o.resultLocked(nil), &persona.ValidationError{Reason: fmt.Sprintf("rounds must be at least 1, got %d", rounds)}
	}
	o.state.Busy = true
	o.mu.Unlock()

	cast := make([]persona.Personality, len(roster))
	for i, p := range roster {
		cast[i] = p.Clone()
	}
	err := persona.ValidateRoster(ctx, cast, o.prober)
	if err == nil {
		err = o.probeEditor(ctx, cast)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Busy = false

	if err != nil {
		log.Debug().Err(err).Str("status", string(o.state.Status)).Msg("Roster rejected")
		return o.resultLocked(nil), err
	}

	continuing := o.state.Status == StatusEditingCast
	if !continuing {
		o.state.Turns = nil
	}
	o.state.Roster = cast
	o.state.RoundsTarget = rounds
	o.state.CurrentRound = 0
	o.state.CurrentPlayer = 0
	o.state.AwaitingSynthesis = false
	o.state.Status = StatusPlaying

	if seed = strings.TrimSpace(seed); seed != "" {
		o.state.Turns = append(o.state.Turns, o.newTurn(persona.Narrator, seed, TurnSeed))
	}

	log.Info().
		Int("personalities", len(cast)).
		Int("rounds", rounds).
		Bool("continuing", continuing).
		Msg("Game started")
	return o.resultLocked(nil), nil
}

// probeEditor checks the story editor's binding unless a roster binding
// already covered it
func (o *Orchestrator) probeEditor(ctx context.Context, cast []persona.Personality) error {
	if o.prober == nil || o.editor == nil {
		return nil
	}
	for _, p := range cast {
		if b, ok := p.Binding(); ok && b.Key() == o.editor.Key() {
			return nil
		}
	}
	if err := o.prober.Probe(ctx, *o.editor); err != nil {
		log.Debug().Err(err).Str("provider", string(o.editor.Provider)).Msg("Story editor probe failed")
		return &persona.ValidationError{
			Personality: persona.Editor.Name,
			Reason:      fmt.Sprintf("model %s is not available: %v", o.editor.Model, err),
		}
	}
	return nil
}

// SubmitTurn plays the current player's turn. Human players supply text;
// for AI players text is ignored and the turn is generated. Completing the
// last round runs the closing summary.
func (o *Orchestrator) SubmitTurn(ctx context.Context, text string) (Result, error) {
	o.mu.Lock()
	if err := o.guardLocked("submit a turn", StatusPlaying); err != nil {
		defer o.mu.Unlock()
		return o.resultLocked(nil), err
	}

	if o.state.AwaitingSynthesis {
		o.state.Busy = true
		in := o.synthesisInputLocked()
		o.mu.Unlock()
		return o.synthesize(ctx, in, nil)
	}

	speaker := o.state.Roster[o.state.CurrentPlayer].Clone()
	if speaker.IsHuman() {
		text = strings.TrimSpace(text)
		if text == "" {
			defer o.mu.Unlock()
			return o.resultLocked(nil), &EmptyInputError{Speaker: speaker.Name}
		}
	}

	o.state.Busy = true
	story := o.window.Render(o.state.Turns)
	images := o.state.ImageGeneration
	o.mu.Unlock()

	var (
		turn Turn
		err  error
	)
	if speaker.IsHuman() {
		turn = o.newTurn(speaker, text, TurnContribution)
	} else {
		turn, err = o.generateTurn(ctx, speaker, story, images)
	}

	o.mu.Lock()
	if err != nil {
		o.state.Busy = false
		defer o.mu.Unlock()
		return o.resultLocked(nil), err
	}

	o.state.Turns = append(o.state.Turns, turn)
	o.state.CurrentPlayer = (o.state.CurrentPlayer + 1) % len(o.state.Roster)

	log.Debug().
		Str("speaker", speaker.Name).
		Int("round", o.state.CurrentRound).
		Int("next_player", o.state.CurrentPlayer).
		Msg("Turn committed")

	if o.state.CurrentPlayer != 0 || o.state.CurrentRound+1 < o.state.RoundsTarget {
		if o.state.CurrentPlayer == 0 {
			o.state.CurrentRound++
		}
		o.state.Busy = false
		defer o.mu.Unlock()
		return o.resultLocked(turn.Image), nil
	}

	// Last round complete; the round counter moves only once the summary exists
	o.state.AwaitingSynthesis = true
	in := o.synthesisInputLocked()
	o.mu.Unlock()
	return o.synthesize(ctx, in, turn.Image)
}

// EditCast leaves a finished game to change the roster before continuing
func (o *Orchestrator) EditCast() (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked("edit the cast", StatusFinished); err != nil {
		return o.resultLocked(nil), err
	}
	o.state.Status = StatusEditingCast
	return o.resultLocked(nil), nil
}

// NewGame discards the story and roster and returns to Setup
func (o *Orchestrator) NewGame() (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Busy {
		return o.resultLocked(nil), ErrBusy
	}
	o.state = State{
		Status:          StatusSetup,
		ImageGeneration: o.state.ImageGeneration,
	}
	return o.resultLocked(nil), nil
}

func (o *Orchestrator) generateTurn(ctx context.Context, speaker persona.Personality, story string, images bool) (Turn, error) {
	fail := func(err error) (Turn, error) {
		log.Warn().Err(err).Str("speaker", speaker.Name).Msg("Turn generation failed")
		return Turn{}, &GenerationError{Speaker: speaker.Name, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if o.resolver == nil {
		return fail(fmt.Errorf("%w: no generator configured", llm.ErrGenerationFailed))
	}

	gen, err := o.resolver.Generator(speaker)
	if err != nil {
		return fail(err)
	}

	text, err := gen.GenerateNextTurn(ctx, story, speaker)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	text = stripSpeakerPrefix(text, speaker.Name)
	if text == "" {
		return fail(fmt.Errorf("%w: reply contained no story text", llm.ErrGenerationFailed))
	}

	turn := o.newTurn(speaker, text, TurnContribution)
	if images {
		turn.Image = o.illustrate(ctx, speaker.Name, text)
	}
	return turn, nil
}

type synthesisInput struct {
	story  string
	traits []string
	images bool
}

func (o *Orchestrator) synthesisInputLocked() synthesisInput {
	var traits []string
	for _, p := range o.state.Roster {
		if !p.IsHuman() {
			traits = append(traits, p.Prompt)
		}
	}
	return synthesisInput{
		story:  StoryText(o.state.Turns),
		traits: traits,
		images: o.state.ImageGeneration,
	}
}

// synthesize runs the closing summary. It is entered busy and leaves idle.
func (o *Orchestrator) synthesize(ctx context.Context, in synthesisInput, turnImage *llm.Image) (Result, error) {
	summary, err := o.summarize(ctx, in)
	if err != nil {
		log.Warn().Err(err).Msg("Story summary failed, the next turn submission retries it")

		o.mu.Lock()
		defer o.mu.Unlock()
		o.state.Busy = false
		return o.resultLocked(turnImage), &SummarizationError{Err: err}
	}

	turn := o.newTurn(persona.Editor, summary, TurnSummary)
	if in.images {
		turn.Image = o.illustrate(ctx, persona.Editor.Name, summary)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Turns = append(o.state.Turns, turn)
	o.state.CurrentRound = o.state.RoundsTarget
	o.state.CurrentPlayer = 0
	o.state.AwaitingSynthesis = false
	o.state.Status = StatusFinished
	o.state.Busy = false

	log.Info().Int("turns", len(o.state.Turns)).Msg("Game finished")

	img := turn.Image
	if img == nil {
		img = turnImage
	}
	return o.resultLocked(img), nil
}

func (o *Orchestrator) summarize(ctx context.Context, in synthesisInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.resolver == nil {
		return "", fmt.Errorf("%w: no story editor configured", llm.ErrGenerationFailed)
	}

	editor, err := o.resolver.Editor()
	if err != nil {
		return "", err
	}

	summary, err := editor.SummarizeStory(ctx, in.story, in.traits)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", llm.ErrGenerationFailed)
	}
	return summary, nil
}

// illustrate never fails the turn; a missing image is only logged
func (o *Orchestrator) illustrate(ctx context.Context, speaker, text string) *llm.Image {
	if o.illustrator == nil {
		log.Warn().Msg("Image generation is on but no image provider is configured")
		return nil
	}

	img, err := o.illustrator.Illustrate(ctx, speaker, text)
	if err != nil {
		log.Warn().Err(err).Str("speaker", speaker).Msg("Image generation failed, continuing without image")
		return nil
	}
	return &img
}

func (o *Orchestrator) guardLocked(op string, allowed ...Status) error {
	if o.state.Busy {
		return ErrBusy
	}
	if !slices.Contains(allowed, o.state.Status) {
		return &StateError{Op: op, Status: o.state.Status}
	}
	return nil
}

func (o *Orchestrator) resultLocked(img *llm.Image) Result {
	return Result{State: o.state.clone(), Image: img}
}

func (o *Orchestrator) newTurn(speaker persona.Personality, text string, kind TurnKind) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker.Clone(),
		Text:      text,
		Kind:      kind,
		CreatedAt: o.now(),
	}
}

// stripSpeakerPrefix removes a leading "Name:" that models add despite instructions
func stripSpeakerPrefix(text, name string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{name + ":", "**" + name + ":**", "**" + name + "**:"} {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			return strings.TrimSpace(text[len(prefix):])
		}
	}
	return text
}
