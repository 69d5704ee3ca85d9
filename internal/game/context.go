package game

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultContextTurns = 24

	// Ellipsis marks turns left out of a bounded story context
	Ellipsis = "[...]"

	DefaultEncoding = "cl100k_base"
)

// TokenCounter counts model tokens in a text
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, cl100k_base when empty
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Window bounds the story context sent for each generated turn. The seed
// turn always stays; then the most recent MaxTurns turns are kept, and with
// MaxTokens and a Counter the oldest kept turns are dropped until the text
// fits. Zero limits mean unbounded.
type Window struct {
	MaxTurns  int
	MaxTokens int
	Counter   TokenCounter
}

// Render returns the bounded story context of turns
func (w Window) Render(turns []Turn) string {
	var head []Turn
	rest := turns
	if len(rest) > 0 && rest[0].Kind == TurnSeed {
		head, rest = rest[:1], rest[1:]
	}

	dropped := false
	if w.MaxTurns > 0 && len(rest) > w.MaxTurns {
		rest = rest[len(rest)-w.MaxTurns:]
		dropped = true
	}

	text := join(head, rest, dropped)
	if w.MaxTokens <= 0 || w.Counter == nil {
		return text
	}

	// The latest turn always stays
	for len(rest) > 1 && w.Counter.Count(text) > w.MaxTokens {
		rest = rest[1:]
		dropped = true
		text = join(head, rest, dropped)
	}
	return text
}

// StoryText renders every turn as prose: trimmed, terminated and space-joined
func StoryText(turns []Turn) string {
	return Window{}.Render(turns)
}

func join(head, rest []Turn, dropped bool) string {
	parts := make([]string, 0, len(head)+len(rest)+1)
	for _, t := range head {
		if s := sentence(t.Text); s != "" {
			parts = append(parts, s)
		}
	}
	if dropped {
		parts = append(parts, Ellipsis)
	}
	for _, t := range rest {
		if s := sentence(t.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// sentence trims text and adds a period unless it already ends a sentence
func sentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if strings.ContainsRune(".!?…\"'”’)", last) {
		return text
	}
	return text + "."
}
