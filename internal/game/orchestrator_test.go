package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/daikw/improv/internal/llm"
	"github.com/daikw/improv/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) GenerateNextTurn(ctx context.Context, story string, p persona.Personality) (string, error) {
	args := m.Called(ctx, story, p)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) SummarizeStory(ctx context.Context, story string, traits []string) (string, error) {
	args := m.Called(ctx, story, traits)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// resolver hands every AI personality the same generator
type resolver struct {
	gen    llm.Generator
	editor llm.Generator
}

func (r *resolver) Generator(p persona.Personality) (llm.Generator, error) {
	if r.gen == nil {
		return nil, errors.New("no generator")
	}
	return r.gen, nil
}

func (r *resolver) Editor() (llm.Generator, error) {
	if r.editor == nil {
		return nil, errors.New("no editor")
	}
	return r.editor, nil
}

type mockIllustrator struct {
	mock.Mock
}

func (m *mockIllustrator) Illustrate(ctx context.Context, speaker, text string) (llm.Image, error) {
	args := m.Called(ctx, speaker, text)
	return args.Get(0).(llm.Image), args.Error(1)
}

func binding() persona.ModelBinding {
	return persona.ModelBinding{Provider: persona.EndpointLocal, Endpoint: "http://localhost:11434", Model: "llama3.1"}
}

func human(name string) persona.Personality {
	p := persona.NewHuman(name)
	p.ID = "id-" + name
	return p
}

func ai(name, prompt string) persona.Personality {
	p := persona.NewAI(name, prompt, binding())
	p.ID = "id-" + name
	return p
}

func newOrchestrator(gen *mockGenerator) *Orchestrator {
	return New(Options{Resolver: &resolver{gen: gen, editor: gen}})
}

func TestAliceAndBobScenario(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	o := newOrchestrator(gen)

	alice := human("Alice")
	bob := ai("Bob", "a grumpy sailor")

	res, err := o.Start(ctx, []persona.Personality{alice, bob}, 1, "A rainy day")
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, res.State.Status)
	require.Len(t, res.State.Turns, 1)
	assert.Equal(t, TurnSeed, res.State.Turns[0].Kind)
	assert.Equal(t, persona.NarratorID, res.State.Turns[0].Speaker.ID)

	res, err = o.SubmitTurn(ctx, "I opened my umbrella.")
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.CurrentPlayer)
	assert.Equal(t, 0, res.State.CurrentRound)

	gen.On("GenerateNextTurn", mock.Anything, "A rainy day. I opened my umbrella.", mock.MatchedBy(func(p persona.Personality) bool {
		return p.Name == "Bob"
	})).Return("The wind flipped it inside out.", nil).Once()
	gen.On("SummarizeStory", mock.Anything, "A rainy day. I opened my umbrella. The wind flipped it inside out.", []string{"a grumpy sailor"}).
		Return("I opened my umbrella and the wind had other plans.", nil).Once()

	res, err = o.SubmitTurn(ctx, "")
	require.NoError(t, err)
	gen.AssertExpectations(t)

	s := res.State
	assert.Equal(t, StatusFinished, s.Status)
	require.Len(t, s.Turns, 4)
	assert.Equal(t, []TurnKind{TurnSeed, TurnContribution, TurnContribution, TurnSummary}, kinds(s.Turns))
	assert.Equal(t, "Alice", s.Turns[1].Speaker.Name)
	assert.Equal(t, "The wind flipped it inside out.", s.Turns[2].Text)
	assert.Equal(t, persona.EditorID, s.Turns[3].Speaker.ID)
	assert.Equal(t, 1, s.CurrentRound)
	assert.False(t, s.Busy)
	assert.False(t, s.AwaitingSynthesis)

	summary, ok := s.Summary()
	require.True(t, ok)
	assert.Equal(t, "I opened my umbrella and the wind had other plans.", summary.Text)
}

func TestFullGameTurnCountAndRotation(t *testing.T) {
	ctx := context.Background()

	for size := 2; size <= 5; size++ {
		for _, rounds := range []int{1, 3} {
			t.Run(fmt.Sprintf("%d players %d rounds", size, rounds), func(t *testing.T) {
				gen := &mockGenerator{}
				gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("Something happened.", nil)
				gen.On("SummarizeStory", mock.Anything, mock.Anything, mock.Anything).Return("It all ended well.", nil).Once()
				o := newOrchestrator(gen)

				roster := []persona.Personality{human("Alice")}
				for i := 1; i < size; i++ {
					roster = append(roster, ai(fmt.Sprintf("Bot%d", i), "a robot"))
				}

				_, err := o.Start(ctx, roster, rounds, "")
				require.NoError(t, err)

				var players []int
				for o.Snapshot().Status == StatusPlaying {
					players = append(players, o.Snapshot().CurrentPlayer)
					_, err := o.SubmitTurn(ctx, "Alice speaks.")
					require.NoError(t, err)
				}

				s := o.Snapshot()
				assert.Equal(t, StatusFinished, s.Status)
				assert.Equal(t, rounds*size, s.Contributions())
				assert.Len(t, s.Turns, rounds*size+1)

				require.Len(t, players, rounds*size)
				for i, p := range players {
					assert.Equal(t, i%size, p, "turn %d", i)
				}
				gen.AssertNumberOfCalls(t, "SummarizeStory", 1)
			})
		}
	}
}

func TestSubmitTurnEmptyHumanInput(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(&mockGenerator{})

	_, err := o.Start(ctx, []persona.Personality{human("Alice"), ai("Bob", "a sailor")}, 2, "Once upon a time.")
	require.NoError(t, err)
	before := o.Snapshot()

	for _, text := range []string{"", "   ", "\n\t"} {
		res, err := o.SubmitTurn(ctx, text)
		var empty *EmptyInputError
		require.ErrorAs(t, err, &empty)
		assert.Equal(t, "Alice", empty.Speaker)
		assert.Equal(t, before, res.State)
	}
	assert.Equal(t, before, o.Snapshot())
}

func TestSubmitTurnGenerationFailure(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	o := newOrchestrator(gen)

	_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor"), human("Alice")}, 2, "")
	require.NoError(t, err)
	before := o.Snapshot()

	cause := fmt.Errorf("%w: connection refused", llm.ErrGenerationFailed)
	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("", cause).Once()

	_, err = o.SubmitTurn(ctx, "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "Bob", genErr.Speaker)
	assert.ErrorIs(t, err, llm.ErrGenerationFailed)

	after := o.Snapshot()
	assert.Equal(t, before, after)
	assert.False(t, after.Busy)

	// The same player retries
	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("Bob hoisted the sail.", nil).Once()
	res, err := o.SubmitTurn(ctx, "")
	require.NoError(t, err)
	assert.Len(t, res.State.Turns, 1)
	assert.Equal(t, 1, res.State.CurrentPlayer)
}

func TestSubmitTurnPrefixOnlyReplyFails(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	o := newOrchestrator(gen)

	_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor")}, 1, "")
	require.NoError(t, err)

	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("Bob:   ", nil).Once()
	_, err = o.SubmitTurn(ctx, "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Empty(t, o.Snapshot().Turns)
}

func TestSubmitTurnStripsSpeakerPrefix(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	o := newOrchestrator(gen)

	_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor"), human("Alice")}, 1, "")
	require.NoError(t, err)

	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("bob: Ahoy there.", nil).Once()
	res, err := o.SubmitTurn(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Ahoy there.", res.State.Turns[0].Text)
}

func TestSubmitTurnCancellation(t *testing.T) {
	gen := &mockGenerator{}
	o := newOrchestrator(gen)

	_, err := o.Start(context.Background(), []persona.Personality{ai("Bob", "a sailor"), human("Alice")}, 1, "")
	require.NoError(t, err)
	before := o.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return("Too late.", nil).Once()

	_, err = o.SubmitTurn(ctx, "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, o.Snapshot())
}

func TestImageFailureNeverBlocksTurn(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	images := &mockIllustrator{}
	o := New(Options{Resolver: &resolver{gen: gen, editor: gen}, Illustrator: images})
	o.SetImageGeneration(true)

	_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor"), ai("Ann", "a baker")}, 1, "")
	require.NoError(t, err)

	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("Bob sang.", nil).Once()
	images.On("Illustrate", mock.Anything, "Bob", "Bob sang.").Return(llm.Image{}, llm.ErrImageGenerationFailed).Once()

	res, err := o.SubmitTurn(ctx, "")
	require.NoError(t, err)
	require.Len(t, res.State.Turns, 1)
	assert.Nil(t, res.State.Turns[0].Image)
	assert.Nil(t, res.Image)

	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("Ann baked.", nil).Once()
	gen.On("SummarizeStory", mock.Anything, mock.Anything, []string{"a sailor", "a baker"}).Return("I sang and baked.", nil).Once()
	images.On("Illustrate", mock.Anything, "Ann", "Ann baked.").Return(llm.Image{Path: "ann.png"}, nil).Once()
	images.On("Illustrate", mock.Anything, persona.Editor.Name, "I sang and baked.").Return(llm.Image{}, errors.New("quota")).Once()

	res, err = o.SubmitTurn(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, res.State.Status)
	require.NotNil(t, res.State.Turns[1].Image)
	assert.Equal(t, "ann.png", res.State.Turns[1].Image.Path)
	assert.Nil(t, res.State.Turns[2].Image)
	require.NotNil(t, res.Image)
	assert.Equal(t, "ann.png", res.Image.Path)
	images.AssertExpectations(t)
}

func TestImageGenerationWithoutIllustrator(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	o := newOrchestrator(gen)
	o.SetImageGeneration(true)

	_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor"), human("Alice")}, 1, "")
	require.NoError(t, err)

	gen.On("GenerateNextTurn", mock.Anything, mock.Anything, mock.Anything).Return("Bob sang.", nil).Once()
	res, err := o.SubmitTurn(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, res.State.Turns[0].Image)
}

func TestSummarizationRetry(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	o := newOrchestrator(gen)

	_, err := o.Start(ctx, []persona.Personality{human("Alice")}, 2, "")
	require.NoError(t, err)

	_, err = o.SubmitTurn(ctx, "First.")
	require.NoError(t, err)
	assert.Equal(t, 1, o.Snapshot().CurrentRound)

	gen.On("SummarizeStory", mock.Anything, "First. Second.", mock.Anything).Return("", errors.New("editor on a coffee break")).Once()
	res, err := o.SubmitTurn(ctx, "Second.")
	var sumErr *SummarizationError
	require.ErrorAs(t, err, &sumErr)

	s := res.State
	assert.Equal(t, StatusPlaying, s.Status)
	assert.True(t, s.AwaitingSynthesis)
	assert.False(t, s.Busy)
	assert.Equal(t, 1, s.CurrentRound, "round counter is not advanced before the summary exists")
	assert.Less(t, s.CurrentRound, s.RoundsTarget)
	assert.Equal(t, 2, s.Contributions())
	_, ok := s.CurrentSpeaker()
	assert.False(t, ok)

	gen.On("SummarizeStory", mock.Anything, "First. Second.", mock.Anything).Return("I said two things.", nil).Once()
	res, err = o.SubmitTurn(ctx, "ignored while awaiting the summary")
	require.NoError(t, err)

	s = res.State
	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, 2, s.CurrentRound)
	assert.False(t, s.AwaitingSynthesis)
	assert.Equal(t, 2, s.Contributions(), "retry does not rotate")
	assert.Len(t, s.Turns, 3)
	gen.AssertExpectations(t)
}

func TestStartValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an AI personality without a prompt", func(t *testing.T) {
		o := newOrchestrator(&mockGenerator{})
		before := o.Snapshot()

		_, err := o.Start(ctx, []persona.Personality{human("Alice"), ai("Bob", "")}, 1, "seed")
		var verr *persona.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Bob", verr.Personality)
		assert.Equal(t, before, o.Snapshot())
	})

	t.Run("rejects fewer than one round", func(t *testing.T) {
		o := newOrchestrator(&mockGenerator{})
		_, err := o.Start(ctx, []persona.Personality{human("Alice")}, 0, "")
		var verr *persona.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, StatusSetup, o.Snapshot().Status)
	})

	t.Run("probes AI bindings", func(t *testing.T) {
		prober := probeFunc(func(ctx context.Context, b persona.ModelBinding) error {
			return errors.New("model not pulled")
		})
		o := New(Options{Resolver: &resolver{}, Prober: prober})

		_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor")}, 1, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not pulled")
		s := o.Snapshot()
		assert.Equal(t, StatusSetup, s.Status)
		assert.False(t, s.Busy)
	})

	t.Run("probes the story editor", func(t *testing.T) {
		editor := persona.ModelBinding{Provider: persona.EndpointOpenAI, Endpoint: "https://api.openai.com/v1", Model: "gpt-4o-mini"}
		var probed []persona.ModelBinding
		prober := probeFunc(func(ctx context.Context, b persona.ModelBinding) error {
			probed = append(probed, b)
			if b.Provider == persona.EndpointOpenAI {
				return errors.New("missing API key")
			}
			return nil
		})
		o := New(Options{Resolver: &resolver{}, Prober: prober, Editor: &editor})

		_, err := o.Start(ctx, []persona.Personality{human("Alice"), ai("Bob", "a sailor")}, 1, "")
		var verr *persona.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, persona.Editor.Name, verr.Personality)
		assert.Contains(t, err.Error(), "missing API key")
		assert.Len(t, probed, 2)
		assert.Equal(t, StatusSetup, o.Snapshot().Status)
	})

	t.Run("editor sharing a roster binding is probed once", func(t *testing.T) {
		editor := binding()
		calls := 0
		prober := probeFunc(func(ctx context.Context, b persona.ModelBinding) error {
			calls++
			return nil
		})
		o := New(Options{Resolver: &resolver{}, Prober: prober, Editor: &editor})

		_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor")}, 1, "")
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("caller roster is copied", func(t *testing.T) {
		o := newOrchestrator(&mockGenerator{})
		roster := []persona.Personality{ai("Bob", "a sailor")}
		_, err := o.Start(ctx, roster, 1, "")
		require.NoError(t, err)

		roster[0].Name = "Mallory"
		roster[0].Model.Model = "changed"
		s := o.Snapshot()
		assert.Equal(t, "Bob", s.Roster[0].Name)
		assert.Equal(t, "llama3.1", s.Roster[0].Model.Model)
	})
}

type probeFunc func(ctx context.Context, b persona.ModelBinding) error

func (f probeFunc) Probe(ctx context.Context, b persona.ModelBinding) error { return f(ctx, b) }

func TestEditCastContinuation(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	gen.On("SummarizeStory", mock.Anything, mock.Anything, mock.Anything).Return("The end.", nil)
	o := newOrchestrator(gen)

	_, err := o.Start(ctx, []persona.Personality{human("Alice")}, 1, "Seed one.")
	require.NoError(t, err)
	_, err = o.SubmitTurn(ctx, "Alice spoke.")
	require.NoError(t, err)
	require.Equal(t, StatusFinished, o.Snapshot().Status)

	res, err := o.EditCast()
	require.NoError(t, err)
	assert.Equal(t, StatusEditingCast, res.State.Status)
	assert.Len(t, res.State.Turns, 3)

	t.Run("invalid roster keeps editing", func(t *testing.T) {
		_, err := o.Start(ctx, []persona.Personality{ai("Nobody", "")}, 1, "")
		require.Error(t, err)
		s := o.Snapshot()
		assert.Equal(t, StatusEditingCast, s.Status)
		assert.Len(t, s.Turns, 3)
	})

	res, err = o.Start(ctx, []persona.Personality{human("Carol")}, 2, "Seed two.")
	require.NoError(t, err)
	s := res.State
	assert.Equal(t, StatusPlaying, s.Status)
	require.Len(t, s.Turns, 4, "log is retained and the new seed appended")
	assert.Equal(t, "Seed two.", s.Turns[3].Text)
	assert.Equal(t, 0, s.CurrentRound)
	assert.Equal(t, 0, s.CurrentPlayer)
	assert.Equal(t, "Carol", s.Roster[0].Name)

	// A new game from Setup always starts with an empty log
	_, err = o.NewGame()
	require.NoError(t, err)
	res, err = o.Start(ctx, []persona.Personality{human("Dave")}, 1, "")
	require.NoError(t, err)
	assert.Empty(t, res.State.Turns)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(&mockGenerator{})

	var stateErr *StateError

	_, err := o.SubmitTurn(ctx, "hi")
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusSetup, stateErr.Status)

	_, err = o.EditCast()
	require.ErrorAs(t, err, &stateErr)

	_, err = o.Start(ctx, []persona.Personality{human("Alice")}, 1, "")
	require.NoError(t, err)

	_, err = o.Start(ctx, []persona.Personality{human("Alice")}, 1, "")
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusPlaying, stateErr.Status)

	_, err = o.EditCast()
	require.ErrorAs(t, err, &stateErr)

	// Abandoning a game in play is allowed
	res, err := o.NewGame()
	require.NoError(t, err)
	assert.Equal(t, StatusSetup, res.State.Status)
	assert.Empty(t, res.State.Roster)
}

func TestNewGameKeepsImageSetting(t *testing.T) {
	o := newOrchestrator(&mockGenerator{})
	o.SetImageGeneration(true)

	res, err := o.NewGame()
	require.NoError(t, err)
	assert.True(t, res.State.ImageGeneration)
}

// blockingGenerator parks GenerateNextTurn until released
type blockingGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGenerator) Name() string { return "blocking" }

func (b *blockingGenerator) GenerateNextTurn(ctx context.Context, story string, p persona.Personality) (string, error) {
	close(b.entered)
	<-b.release
	return "Finally.", nil
}

func (b *blockingGenerator) SummarizeStory(ctx context.Context, story string, traits []string) (string, error) {
	return "Done.", nil
}

func (b *blockingGenerator) Ping(ctx context.Context) error { return nil }

func TestBusyRejectsOverlappingOperations(t *testing.T) {
	ctx := context.Background()
	gen := &blockingGenerator{entered: make(chan struct{}), release: make(chan struct{})}
	o := New(Options{Resolver: &resolver{gen: gen, editor: gen}})

	_, err := o.Start(ctx, []persona.Personality{ai("Bob", "a sailor"), human("Alice")}, 1, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.SubmitTurn(ctx, "")
		done <- err
	}()

	select {
	case <-gen.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}

	assert.True(t, o.Snapshot().Busy)

	_, err = o.SubmitTurn(ctx, "")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = o.NewGame()
	assert.ErrorIs(t, err, ErrBusy)
	_, err = o.EditCast()
	assert.ErrorIs(t, err, ErrBusy)
	_, err = o.Start(ctx, nil, 1, "")
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.release)
	require.NoError(t, <-done)

	s := o.Snapshot()
	assert.False(t, s.Busy)
	assert.Len(t, s.Turns, 1)
	assert.Equal(t, 1, s.CurrentPlayer)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(&mockGenerator{})
	_, err := o.Start(ctx, []persona.Personality{human("Alice"), ai("Bob", "a sailor")}, 1, "Seed.")
	require.NoError(t, err)

	s := o.Snapshot()
	s.Turns[0].Text = "tampered"
	s.Roster[1].Model.Endpoint = "http://evil"

	fresh := o.Snapshot()
	assert.Equal(t, "Seed.", fresh.Turns[0].Text)
	assert.Equal(t, "http://localhost:11434", fresh.Roster[1].Model.Endpoint)
}

func TestStripSpeakerPrefix(t *testing.T) {
	assert.Equal(t, "Hello.", stripSpeakerPrefix("Bob: Hello.", "Bob"))
	assert.Equal(t, "Hello.", stripSpeakerPrefix("**Bob:** Hello.", "Bob"))
	assert.Equal(t, "Bobby waved.", stripSpeakerPrefix("Bobby waved.", "Bob"))
	assert.Equal(t, "", stripSpeakerPrefix(" Bob: ", "Bob"))
}

func kinds(turns []Turn) []TurnKind {
	out := make([]TurnKind, len(turns))
	for i, t := range turns {
		out[i] = t.Kind
	}
	return out
}
