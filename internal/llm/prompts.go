package llm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
)

// Template file names looked up in a prompts directory
const (
	TurnSystemFile    = "turn_system.tmpl"
	TurnUserFile      = "turn_user.tmpl"
	SummarySystemFile = "summary_system.tmpl"
	SummaryUserFile   = "summary_user.tmpl"
	ImageFile         = "image.tmpl"
)

const defaultTurnSystem = `You are an expert improv comedian playing a game of 'Yes, And...'.
Your goal is to collaboratively build a story.
You MUST accept the previous parts of the story as fact and build upon them.
You MUST stay in character based on the personality provided to you.
You MUST only add one or two new sentences to the story.
Do NOT add any prefixes like your character name. Just output the story sentence(s).`

const defaultTurnUser = `Here is the story so far:
---
{{if .Story}}{{.Story}}{{else}}(The story is just beginning...){{end}}
---
Now, as the character "{{.Name}}" whose personality is: "{{.Prompt}}", continue the story.`

const defaultSummarySystem = `You are a master storyteller with a complex, multifaceted personality. Your task is to narrate a sequence of events from a singular, first-person ("I") perspective.
Your personality is a seamless blend of the following characteristics:
---
{{range .Traits}}- {{.}}
{{end}}---

You will be given a block of raw, unordered text representing a series of events or thoughts. Your job is to synthesize this text into a single, coherent story passage, told through your unique, blended personality.

- Do not act as separate characters. You are one person who contains all these traits.
- Weave the different personality flavors into your narrative naturally.
- The final output must be a smooth, flowing story paragraph from a single "I" perspective.`

const defaultSummaryUser = `Here are the raw story fragments. Narrate them as a single, first-person story using your blended personality:
---
{{.Story}}
---`

const defaultImage = `A vivid storybook illustration of this moment{{if .Speaker}}, told by {{.Speaker}}{{end}}: {{.Text}}`

// TurnData feeds the turn templates
type TurnData struct {
	Story  string
	Name   string
	Prompt string
}

// SummaryData feeds the summary templates
type SummaryData struct {
	Story  string
	Traits []string
}

// ImageData feeds the image template
type ImageData struct {
	Speaker string
	Text    string
}

// Prompts renders every prompt the game sends
type Prompts struct {
	turnSystem    *template.Template
	turnUser      *template.Template
	summarySystem *template.Template
	summaryUser   *template.Template
	image         *template.Template
}

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() *Prompts {
	return &Prompts{
		turnSystem:    template.Must(template.New(TurnSystemFile).Parse(defaultTurnSystem)),
		turnUser:      template.Must(template.New(TurnUserFile).Parse(defaultTurnUser)),
		summarySystem: template.Must(template.New(SummarySystemFile).Parse(defaultSummarySystem)),
		summaryUser:   template.Must(template.New(SummaryUserFile).Parse(defaultSummaryUser)),
		image:         template.Must(template.New(ImageFile).Parse(defaultImage)),
	}
}

// LoadPrompts returns the defaults with any template found in dir replacing
// its built-in counterpart. An empty dir yields the defaults.
func LoadPrompts(dir string) (*Prompts, error) {
	p := DefaultPrompts()
	if dir == "" {
		return p, nil
	}

	targets := map[string]**template.Template{
		TurnSystemFile:    &p.turnSystem,
		TurnUserFile:      &p.turnUser,
		SummarySystemFile: &p.summarySystem,
		SummaryUserFile:   &p.summaryUser,
		ImageFile:         &p.image,
	}

	for name, target := range targets {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read prompt template %s: %w", path, err)
		}

		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s: %w", path, err)
		}
		*target = tmpl
		log.Debug().Str("template", name).Str("path", path).Msg("Loaded prompt override")
	}

	return p, nil
}

// Turn renders the system and user prompts of a story turn
func (p *Prompts) Turn(data TurnData) (system, user string, err error) {
	if system, err = render(p.turnSystem, data); err != nil {
		return "", "", err
	}
	if user, err = render(p.turnUser, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Summary renders the system and user prompts of the closing summary
func (p *Prompts) Summary(data SummaryData) (system, user string, err error) {
	if system, err = render(p.summarySystem, data); err != nil {
		return "", "", err
	}
	if user, err = render(p.summaryUser, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Image renders an illustration prompt
func (p *Prompts) Image(data ImageData) (string, error) {
	return render(p.image, data)
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
