package game

import (
	"errors"
	"fmt"
)

// ErrBusy rejects an operation while another one is in flight
var ErrBusy = errors.New("another game operation is in progress")

// StateError is returned when an operation is not allowed in the current status
type StateError struct {
	Op     string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while the game is %s", e.Op, e.Status)
}

// EmptyInputError is returned when a human turn has no text
type EmptyInputError struct {
	Speaker string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s's turn needs some text", e.Speaker)
}

// GenerationError is returned when an AI turn could not be generated.
// The turn is discarded and the game is unchanged.
type GenerationError struct {
	Speaker string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate %s's turn: %v", e.Speaker, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SummarizationError is returned when the closing summary failed. The game
// stays in play and the next turn submission retries the summary.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("failed to summarize the story: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
