package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// File permissions
	DirPermission  = 0755 // Directory permission (rwxr-xr-x)
	FilePermission = 0600 // Cast files may hold credentials (rw-------)
)

// Definition describes a personality before it joins a roster
type Definition struct {
	Name    string        `json:"name,omitempty"`
	Prompt  string        `json:"prompt,omitempty"`
	Avatar  string        `json:"avatar,omitempty"`
	Kind    Kind          `json:"type,omitempty"`
	Builtin string        `json:"builtin,omitempty"`
	Model   *ModelBinding `json:"model,omitempty"`
}

// CastFile is the on-disk description of a game's cast and options
type CastFile struct {
	Rounds          int          `json:"rounds,omitempty"`
	Seed            string       `json:"seed,omitempty"`
	ImageGeneration bool         `json:"image_generation,omitempty"`
	Personalities   []Definition `json:"personalities"`
}

// NewRoster builds personalities from definitions, assigning fresh IDs and
// filling missing binding fields from defaults. It does not validate.
func NewRoster(defs []Definition, defaults BindingDefaults) ([]Personality, error) {
	roster := make([]Personality, 0, len(defs))
	avatar := 0

	for i, def := range defs {
		if def.Builtin != "" {
			f, ok := Lookup(def.Builtin)
			if !ok {
				return nil, fmt.Errorf("personality %d: unknown built-in %q", i+1, def.Builtin)
			}
			if def.Name == "" {
				def.Name = f.Name
			}
			if def.Prompt == "" {
				def.Prompt = f.Prompt
			}
		}

		var p Personality
		switch def.Kind {
		case KindHuman:
			name := def.Name
			if name == "" {
				name = User.Name
			}
			p = NewHuman(name)
		case KindAI, "":
			var binding ModelBinding
			if def.Model != nil {
				binding = *def.Model
			}
			if defaults != nil {
				if binding.Provider == "" {
					binding.Provider = defaults("").Provider
				}
				binding = binding.Merge(defaults(binding.Provider))
			}
			p = NewAI(def.Name, def.Prompt, binding)
			if def.Avatar == "" {
				def.Avatar = Avatars[avatar%len(Avatars)]
				avatar++
			}
		default:
			return nil, fmt.Errorf("personality %d: unknown type %q", i+1, def.Kind)
		}

		if def.Avatar != "" {
			p.Avatar = def.Avatar
		}
		p.ID = uuid.NewString()
		roster = append(roster, p)
	}

	return roster, nil
}

// LoadCastFile reads a cast file, expanding ${VAR} references from the environment
func LoadCastFile(path string) (*CastFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cast file: %w", err)
	}

	var cast CastFile
	if err := json.Unmarshal([]byte(ExpandEnv(string(data))), &cast); err != nil {
		return nil, fmt.Errorf("failed to parse cast file %s: %w", path, err)
	}

	checkFilePermissions(path)

	log.Debug().Str("path", path).Int("personalities", len(cast.Personalities)).Msg("Loaded cast file")
	return &cast, nil
}

// SaveCastFile writes a cast file, creating its directory when needed
func SaveCastFile(path string, cast *CastFile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DirPermission); err != nil {
			return fmt.Errorf("failed to create cast directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(cast, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cast: %w", err)
	}

	if err := os.WriteFile(path, data, FilePermission); err != nil {
		return fmt.Errorf("failed to write cast file: %w", err)
	}

	log.Debug().Str("path", path).Msg("Saved cast file")
	return nil
}

// ExampleCastFile returns a starter cast: the human player and two built-ins
func ExampleCastFile() *CastFile {
	return &CastFile{
		Rounds: 3,
		Seed:   "It was a rainy day at the docks.",
		Personalities: []Definition{
			{Kind: KindHuman, Name: User.Name},
			{Builtin: "Sherlock Holmes"},
			{Builtin: "A Pirate Captain", Model: &ModelBinding{
				Provider:   EndpointOpenAI,
				Model:      "gpt-4o-mini",
				Credential: "${OPENAI_API_KEY}",
			}},
		},
	}
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${VAR} patterns with environment variable values
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		// Don't log variable names for security reasons
		log.Debug().Msg("Referenced environment variable not set in cast file")
		return ""
	})
}

func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0077 != 0 && strings.Contains(filepath.Base(path), ".json") {
		log.Warn().
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Str("path", path).
			Msg("Cast file may contain credentials but has permissive permissions. Consider: chmod 600")
	}
}
