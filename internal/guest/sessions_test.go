package guest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_StartAndLookup(t *testing.T) {
	s := NewSessions(DefaultMaxMessages, time.Hour)

	id, tr, err := s.Start()
	require.NoError(t, err)
	assert.Len(t, id, 2*sessionIDBytes)
	assert.Equal(t, DefaultMaxMessages, tr.Remaining())

	tr.Increment()
	tr.Increment()

	got, ok := s.Lookup(id, 0)
	require.True(t, ok)
	assert.Same(t, tr, got)
	assert.Equal(t, 2, got.Count())

	_, ok = s.Lookup("unknown", 0)
	assert.False(t, ok)
}

func TestSessions_LookupNeverLowersCount(t *testing.T) {
	s := NewSessions(DefaultMaxMessages, time.Hour)
	id, tr, err := s.Start()
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		tr.Increment()
	}

	got, ok := s.Lookup(id, 1)
	require.True(t, ok)
	assert.Equal(t, 4, got.Count())
	assert.True(t, got.IsLastFree())

	got, ok = s.Lookup(id, 5)
	require.True(t, ok)
	assert.True(t, got.HasReachedLimit())
}

func TestSessions_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSessions(DefaultMaxMessages, time.Hour)
	s.now = clock.now

	idle, _, err := s.Start()
	require.NoError(t, err)
	active, _, err := s.Start()
	require.NoError(t, err)

	clock.advance(45 * time.Minute)
	_, ok := s.Lookup(active, 0)
	require.True(t, ok)

	clock.advance(30 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, ok = s.Lookup(idle, 0)
	assert.False(t, ok)

	clock.advance(2 * time.Hour)
	_, ok = s.Lookup(active, 0)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestSessions_RunStopsWithContext(t *testing.T) {
	s := NewSessions(DefaultMaxMessages, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
