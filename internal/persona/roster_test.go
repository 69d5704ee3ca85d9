package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults(provider EndpointType) ModelBinding {
	switch provider {
	case EndpointOpenAI:
		return ModelBinding{Provider: EndpointOpenAI, Endpoint: "https://api.openai.com/v1", Credential: "sk-env"}
	default:
		return ModelBinding{Provider: EndpointLocal, Endpoint: "http://localhost:11434", Model: "llama3.1"}
	}
}

func TestNewRoster(t *testing.T) {
	t.Run("assigns unique ids and fills bindings", func(t *testing.T) {
		roster, err := NewRoster([]Definition{
			{Kind: KindHuman},
			{Builtin: "sherlock holmes"},
			{Name: "Pirate", Prompt: "arr", Model: &ModelBinding{Provider: EndpointOpenAI, Model: "gpt-4o-mini"}},
		}, testDefaults)
		require.NoError(t, err)
		require.Len(t, roster, 3)

		assert.True(t, roster[0].IsHuman())
		assert.Equal(t, "You", roster[0].Name)
		assert.Nil(t, roster[0].Model)

		assert.Equal(t, "Sherlock Holmes", roster[1].Name)
		assert.NotEmpty(t, roster[1].Prompt)
		b, ok := roster[1].Binding()
		require.True(t, ok)
		assert.Equal(t, EndpointLocal, b.Provider)
		assert.Equal(t, "llama3.1", b.Model)
		assert.Equal(t, "http://localhost:11434", b.Endpoint)

		b, ok = roster[2].Binding()
		require.True(t, ok)
		assert.Equal(t, "gpt-4o-mini", b.Model)
		assert.Equal(t, "https://api.openai.com/v1", b.Endpoint)
		assert.Equal(t, "sk-env", b.Credential)

		ids := map[string]bool{}
		for _, p := range roster {
			assert.NotEmpty(t, p.ID)
			ids[p.ID] = true
		}
		assert.Len(t, ids, 3)
	})

	t.Run("assigns avatars to AI personalities", func(t *testing.T) {
		roster, err := NewRoster([]Definition{{Name: "A", Prompt: "a"}, {Name: "B", Prompt: "b", Avatar: "🐙"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, Avatars[0], roster[0].Avatar)
		assert.Equal(t, "🐙", roster[1].Avatar)
	})

	t.Run("rejects unknown built-ins", func(t *testing.T) {
		_, err := NewRoster([]Definition{{Builtin: "Nobody"}}, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown built-in")
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := NewRoster([]Definition{{Name: "X", Kind: "robot"}}, nil)
		assert.Error(t, err)
	})
}

func TestCastFileRoundTrip(t *testing.T) {
	t.Setenv("IMPROV_TEST_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "casts", "cast.json")

	cast := ExampleCastFile()
	require.NoError(t, SaveCastFile(path, cast))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermission), info.Mode().Perm())

	raw := `{"rounds": 2, "personalities": [{"name": "Bot", "prompt": "p", "model": {"provider": "openai", "credential": "${IMPROV_TEST_KEY}"}}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), FilePermission))

	loaded, err := LoadCastFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Rounds)
	require.Len(t, loaded.Personalities, 1)
	assert.Equal(t, "sk-from-env", loaded.Personalities[0].Model.Credential)
}

func TestLoadCastFileErrors(t *testing.T) {
	_, err := LoadCastFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), FilePermission))
	_, err = LoadCastFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLookup(t *testing.T) {
	f, ok := Lookup("A VALLEY GIRL")
	assert.True(t, ok)
	assert.Equal(t, "A Valley Girl", f.Name)

	_, ok = Lookup("Hamlet")
	assert.False(t, ok)

	assert.Len(t, Builtins(), 6)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("IMPROV_SET", "value")
	assert.Equal(t, "a value b", ExpandEnv("a ${IMPROV_SET} b"))
	assert.Equal(t, "a  b", ExpandEnv("a ${IMPROV_UNSET_VARIABLE} b"))
}
