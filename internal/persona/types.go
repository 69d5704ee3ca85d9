package persona

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind distinguishes human-controlled personalities from generated ones
type Kind string

const (
	KindHuman Kind = "user"
	KindAI    Kind = "ai"
)

// EndpointType identifies the generation service a model binding routes to
type EndpointType string

const (
	EndpointHuggingFace EndpointType = "huggingface"
	EndpointLocal       EndpointType = "local"
	EndpointOpenAI      EndpointType = "openai"
)

// EndpointTypes returns the supported endpoint types
func EndpointTypes() []EndpointType {
	return []EndpointType{EndpointHuggingFace, EndpointLocal, EndpointOpenAI}
}

// ParseEndpointType converts a string into a known endpoint type
func ParseEndpointType(s string) (EndpointType, error) {
	switch t := EndpointType(strings.ToLower(strings.TrimSpace(s))); t {
	case EndpointHuggingFace, EndpointLocal, EndpointOpenAI:
		return t, nil
	default:
		return "", fmt.Errorf("unknown endpoint type: %q (supported: huggingface, local, openai)", s)
	}
}

// ModelBinding routes an AI personality's generation calls
type ModelBinding struct {
	Provider   EndpointType `json:"provider"`
	Endpoint   string       `json:"endpoint"`
	Model      string       `json:"model"`
	Credential string       `json:"credential,omitempty"`
}

// Key identifies the binding for client caching; the credential is part of it
// so two personalities with different keys never share a client.
func (b ModelBinding) Key() string {
	return string(b.Provider) + "|" + b.Endpoint + "|" + b.Model + "|" + b.Credential
}

// Merge fills empty fields from defaults
func (b ModelBinding) Merge(defaults ModelBinding) ModelBinding {
	if b.Provider == "" {
		b.Provider = defaults.Provider
	}
	if b.Endpoint == "" {
		b.Endpoint = defaults.Endpoint
	}
	if b.Model == "" {
		b.Model = defaults.Model
	}
	if b.Credential == "" {
		b.Credential = defaults.Credential
	}
	return b
}

// MaskCredential returns a display form of a secret that does not reveal it
func MaskCredential(secret string) string {
	if secret == "" {
		return ""
	}
	return fmt.Sprintf("[set, %d chars]", len(secret))
}

// IsMasked reports whether value came from MaskCredential
func IsMasked(value string) bool {
	return strings.HasPrefix(value, "[set,")
}

// BindingDefaults returns the default binding for a provider. An empty
// provider asks for the configured default provider.
type BindingDefaults func(provider EndpointType) ModelBinding

// Personality is a participant definition. Human personalities carry no
// model binding; AI personalities always carry one.
type Personality struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Prompt string        `json:"prompt"`
	Avatar string        `json:"avatar,omitempty"`
	Kind   Kind          `json:"type"`
	Model  *ModelBinding `json:"model,omitempty"`
}

// NewHuman returns a human-controlled personality
func NewHuman(name string) Personality {
	return Personality{
		Name:   name,
		Avatar: User.Avatar,
		Kind:   KindHuman,
	}
}

// NewAI returns a generated personality bound to a model
func NewAI(name, prompt string, binding ModelBinding) Personality {
	return Personality{
		Name:   name,
		Prompt: prompt,
		Kind:   KindAI,
		Model:  &binding,
	}
}

// IsHuman reports whether the personality's turns are supplied by a person
func (p Personality) IsHuman() bool {
	return p.Kind == KindHuman
}

// Binding returns the model binding of an AI personality
func (p Personality) Binding() (ModelBinding, bool) {
	if p.Kind != KindAI || p.Model == nil {
		return ModelBinding{}, false
	}
	return *p.Model, true
}

// Validate checks the kind/binding pairing and required fields
func (p Personality) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("personality name cannot be empty")
	}

	switch p.Kind {
	case KindHuman:
		if p.Model != nil {
			return fmt.Errorf("human personality %q cannot have a model binding", p.Name)
		}
	case KindAI:
		if p.Model == nil {
			return fmt.Errorf("AI personality %q requires a model binding", p.Name)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return fmt.Errorf("AI personality %q requires a personality prompt", p.Name)
		}
	default:
		return fmt.Errorf("personality %q has unknown type %q", p.Name, p.Kind)
	}

	return nil
}

// MarshalJSON masks the binding credential. Cast files carry credentials
// through Definition, which marshals them as written.
func (p Personality) MarshalJSON() ([]byte, error) {
	type plain Personality
	out := plain(p.Clone())
	if out.Model != nil {
		out.Model.Credential = MaskCredential(out.Model.Credential)
	}
	return json.Marshal(out)
}

// Clone returns a copy that shares no pointers with p
func (p Personality) Clone() Personality {
	if p.Model != nil {
		b := *p.Model
		p.Model = &b
	}
	return p
}
