package game

import (
	"time"

	"github.com/daikw/improv/internal/llm"
	"github.com/daikw/improv/internal/persona"
)

// Status is the lifecycle phase of a game
type Status string

const (
	StatusSetup       Status = "SETUP"
	StatusPlaying     Status = "PLAYING"
	StatusFinished    Status = "FINISHED"
	StatusEditingCast Status = "EDITING_CAST"
)

// TurnKind classifies entries of the turn log
type TurnKind string

const (
	TurnSeed         TurnKind = "narration-seed"
	TurnContribution TurnKind = "contribution"
	TurnSummary      TurnKind = "summary"
)

// Turn is one committed entry of the story
type Turn struct {
	ID        string              `json:"id"`
	Speaker   persona.Personality `json:"speaker"`
	Text      string              `json:"text"`
	Kind      TurnKind            `json:"kind"`
	Image     *llm.Image          `json:"image,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// State is the game aggregate. Callers only ever hold copies.
type State struct {
	Status            Status                `json:"status"`
	Roster            []persona.Personality `json:"roster"`
	RoundsTarget      int                   `json:"rounds_target"`
	Turns             []Turn                `json:"turns"`
	CurrentRound      int                   `json:"current_round"`
	CurrentPlayer     int                   `json:"current_player"`
	ImageGeneration   bool                  `json:"image_generation"`
	Busy              bool                  `json:"busy"`
	AwaitingSynthesis bool                  `json:"awaiting_synthesis"`
}

// Result is returned by every state-changing operation. Image is the
// illustration produced by the operation, if any.
type Result struct {
	State State      `json:"state"`
	Image *llm.Image `json:"image,omitempty"`
}

// CurrentSpeaker returns the personality whose turn it is while playing
func (s State) CurrentSpeaker() (persona.Personality, bool) {
	if s.Status != StatusPlaying || s.AwaitingSynthesis || s.CurrentPlayer >= len(s.Roster) {
		return persona.Personality{}, false
	}
	return s.Roster[s.CurrentPlayer], true
}

// Summary returns the closing summary turn of a finished game
func (s State) Summary() (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Kind == TurnSummary {
			return s.Turns[i], true
		}
	}
	return Turn{}, false
}

// Contributions counts committed contribution turns
func (s State) Contributions() int {
	n := 0
	for _, t := range s.Turns {
		if t.Kind == TurnContribution {
			n++
		}
	}
	return n
}

// Story renders the whole turn log as prose
func (s State) Story() string {
	return StoryText(s.Turns)
}

func (s State) clone() State {
	out := s
	if s.Roster != nil {
		out.Roster = make([]persona.Personality, len(s.Roster))
		for i, p := range s.Roster {
			out.Roster[i] = p.Clone()
		}
	}
	if s.Turns != nil {
		out.Turns = make([]Turn, len(s.Turns))
		for i, t := range s.Turns {
			t.Speaker = t.Speaker.Clone()
			if t.Image != nil {
				img := *t.Image
				t.Image = &img
			}
			out.Turns[i] = t
		}
	}
	return out
}
