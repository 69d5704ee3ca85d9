package persona

import "strings"

// Reserved personality IDs
const (
	EditorID   = "editor"
	NarratorID = "narrator"
	UserID     = "user-player"
)

// Editor speaks the closing summary of every game
var Editor = Personality{
	ID:     EditorID,
	Name:   "Story Editor",
	Prompt: "A helpful AI assistant that summarizes stories.",
	Avatar: "📝",
	Kind:   KindAI,
}

// Narrator speaks the opening seed of a story
var Narrator = Personality{
	ID:     NarratorID,
	Name:   "Narrator",
	Avatar: "📖",
	Kind:   KindAI,
}

// User is the default human player
var User = Personality{
	ID:     UserID,
	Name:   "You",
	Avatar: "🧑‍💻",
	Kind:   KindHuman,
}

// Avatars are assigned round-robin to AI personalities without one
var Avatars = []string{"🤖", "👽", "🧠", "🧙", "🕵️", "👨‍🎤", "👩‍🚀", "🧑‍🎨", "🧑‍💻"}

// Famous is a built-in personality without a model binding
type Famous struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

var famous = []Famous{
	{Name: "Jerry Seinfeld", Prompt: `a neurotic comedian from New York who finds the absurd in everyday situations, often starting sentences with "What's the deal with...".`},
	{Name: "Sherlock Holmes", Prompt: "a brilliant, eccentric detective with extraordinary powers of observation and deduction, speaking with a cold, logical precision and occasional condescension."},
	{Name: "A Surfer Dude", Prompt: `a laid-back, chill person who uses a lot of surf slang like "gnarly", "radical", "bodacious", and "dude", and sees everything in a positive, wave-riding light.`},
	{Name: "A Film Noir Detective", Prompt: "a world-weary, cynical private eye from the 1940s. It was a dark and stormy night... always. The dialogue is terse, full of shadows, suspicion, and dames."},
	{Name: "A Pirate Captain", Prompt: `a swashbuckling pirate captain with a thick accent, obsessed with treasure, grog, and the sea. Often says "Arrr!" and refers to people as "matey" or "landlubber".`},
	{Name: "A Valley Girl", Prompt: `a bubbly but air-headed teenager from the 80s. Uses words like "like", "totally", "for sure", and "gag me with a spoon".`},
}

// Builtins returns the built-in cast
func Builtins() []Famous {
	out := make([]Famous, len(famous))
	copy(out, famous)
	return out
}

// Lookup finds a built-in personality by case-insensitive name
func Lookup(name string) (Famous, bool) {
	for _, f := range famous {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f, true
		}
	}
	return Famous{}, false
}

// Reserved reports whether id belongs to a pseudo-personality that cannot
// join a roster.
func Reserved(id string) bool {
	return id == EditorID || id == NarratorID
}
