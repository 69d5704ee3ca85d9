package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPromptsTurn(t *testing.T) {
	p := DefaultPrompts()

	system, user, err := p.Turn(TurnData{Name: "Bob", Prompt: "a grumpy sailor"})
	require.NoError(t, err)
	assert.Contains(t, system, "Yes, And")
	assert.Contains(t, user, "(The story is just beginning...)")
	assert.Contains(t, user, `"Bob" whose personality is: "a grumpy sailor"`)

	_, user, err = p.Turn(TurnData{Story: "It was a dark night.", Name: "Bob", Prompt: "x"})
	require.NoError(t, err)
	assert.Contains(t, user, "---\nIt was a dark night.\n---")
	assert.NotContains(t, user, "just beginning")
}

func TestDefaultPromptsSummary(t *testing.T) {
	system, user, err := DefaultPrompts().Summary(SummaryData{
		Story:  "Alice walked. Bob sailed.",
		Traits: []string{"a grumpy sailor", "a cheerful baker"},
	})
	require.NoError(t, err)
	assert.Contains(t, system, "- a grumpy sailor\n- a cheerful baker\n")
	assert.Contains(t, user, "Alice walked. Bob sailed.")
}

func TestDefaultPromptsImage(t *testing.T) {
	prompt, err := DefaultPrompts().Image(ImageData{Speaker: "Bob", Text: "The ship sank."})
	require.NoError(t, err)
	assert.Contains(t, prompt, "told by Bob")
	assert.Contains(t, prompt, "The ship sank.")
}

func TestLoadPrompts(t *testing.T) {
	t.Run("empty dir yields defaults", func(t *testing.T) {
		p, err := LoadPrompts("")
		require.NoError(t, err)
		system, _, err := p.Turn(TurnData{})
		require.NoError(t, err)
		assert.Contains(t, system, "improv")
	})

	t.Run("overrides present templates only", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, TurnSystemFile), []byte("Speak like {{.Name}}."), 0644))

		p, err := LoadPrompts(dir)
		require.NoError(t, err)

		system, user, err := p.Turn(TurnData{Name: "Bob"})
		require.NoError(t, err)
		assert.Equal(t, "Speak like Bob.", system)
		assert.Contains(t, user, "continue the story")
	})

	t.Run("rejects invalid templates", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryUserFile), []byte("{{.Story"), 0644))

		_, err := LoadPrompts(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse prompt template")
	})
}
