package game

import (
	"context"
	"sync"
	"testing"

	"github.com/daikw/improv/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSessions(t *testing.T) {
	m := NewManager(Options{Resolver: &resolver{}})

	a := m.Create()
	b := m.Create()
	assert.NotEqual(t, a.ID, b.ID)

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	list := m.List()
	require.Len(t, list, 2)

	require.NoError(t, m.Delete(a.ID))
	_, err = m.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(a.ID), ErrSessionNotFound)
	assert.Len(t, m.List(), 1)
}

func TestManagerSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Options{Resolver: &resolver{}})

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		sessions[i] = m.Create()
	}

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_, err := s.Start(ctx, []persona.Personality{human("Alice")}, 3, s.ID)
			assert.NoError(t, err)
			_, err = s.SubmitTurn(ctx, "Hello from "+s.ID)
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	for _, s := range sessions {
		state := s.Snapshot()
		require.Len(t, state.Turns, 2)
		assert.Equal(t, s.ID, state.Turns[0].Text)
		assert.Equal(t, "Hello from "+s.ID, state.Turns[1].Text)
	}
}
