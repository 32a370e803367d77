package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"finwise/internal/cache"
	"finwise/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = core.User{ID: 7, Username: "alice", Email: "alice@x.com"}

func TestNewSessionIsLoggedOut(t *testing.T) {
	s := New("id-1")
	snap := s.Snapshot()
	assert.Equal(t, LoggedOut, snap.State)
	assert.Equal(t, Login, snap.Flow)
	assert.False(t, snap.LoggedIn())
	assert.Equal(t, "id-1", s.ID())
}

func TestLogInLogOut(t *testing.T) {
	s := New("id")
	require.NoError(t, s.SelectAuthFlow(Register))
	require.NoError(t, s.LogIn(alice))

	snap := s.Snapshot()
	assert.Equal(t, LoggedIn, snap.State)
	assert.Equal(t, Home, snap.View)
	assert.Equal(t, Identity{UserID: 7, Username: "alice", Email: "alice@x.com"}, snap.Identity)

	assert.ErrorIs(t, s.LogIn(alice), ErrAlreadyLoggedIn)

	require.NoError(t, s.Navigate(Dashboard))
	require.NoError(t, s.LogOut())
	snap = s.Snapshot()
	assert.Equal(t, LoggedOut, snap.State)
	assert.Equal(t, Identity{}, snap.Identity)
	assert.Equal(t, Login, snap.Flow)

	assert.ErrorIs(t, s.LogOut(), ErrNotAuthenticated)
}

func TestNavigate(t *testing.T) {
	s := New("id")
	assert.ErrorIs(t, s.Navigate(Dashboard), ErrNotAuthenticated)

	require.NoError(t, s.LogIn(alice))
	for _, from := range Views {
		for _, to := range Views {
			require.NoError(t, s.Navigate(from))
			require.NoError(t, s.Navigate(to))
			assert.Equal(t, to, s.Snapshot().View)
		}
	}

	err := s.Navigate(View("settings"))
	assert.True(t, errors.Is(err, ErrUnknownView))
	assert.Equal(t, Chatbot, s.Snapshot().View, "failed navigation keeps the current view")
}

func TestSelectAuthFlow(t *testing.T) {
	s := New("id")
	for _, f := range []AuthFlow{Register, ForgotPassword, Login, ForgotPassword} {
		require.NoError(t, s.SelectAuthFlow(f))
		assert.Equal(t, f, s.Snapshot().Flow)
	}
	assert.ErrorIs(t, s.SelectAuthFlow(AuthFlow("sso")), ErrUnknownAuthFlow)

	require.NoError(t, s.LogIn(alice))
	assert.ErrorIs(t, s.SelectAuthFlow(Register), ErrAlreadyLoggedIn)
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(time.Hour, 100)

	s, created := m.Load(ctx, "")
	require.True(t, created)
	assert.Equal(t, 1, m.Count())

	again, created := m.Load(ctx, s.ID())
	assert.False(t, created)
	assert.Same(t, s, again)

	_, created = m.Load(ctx, "unknown")
	assert.True(t, created)
	assert.Equal(t, 2, m.Count())

	m.Destroy(ctx, s.ID())
	_, ok := m.Get(s.ID())
	assert.False(t, ok)
}

func TestManagerRotate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(time.Hour, 10)
	s := m.Create(ctx)
	old := s.ID()
	require.NoError(t, s.LogIn(alice))

	m.Rotate(ctx, s)
	assert.NotEqual(t, old, s.ID())
	_, ok := m.Get(old)
	assert.False(t, ok, "old id must not resolve")

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.True(t, got.Snapshot().LoggedIn())
}

func TestManagerIdleTimeout(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(time.Minute, 10, cache.WithClock(clock))
	assert.Equal(t, time.Minute, m.TTL())

	s := m.Create(context.Background())
	now = now.Add(50 * time.Second)
	_, ok := m.Get(s.ID())
	require.True(t, ok, "activity refreshes the timeout")

	now = now.Add(50 * time.Second)
	_, ok = m.Get(s.ID())
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get(s.ID())
	assert.False(t, ok, "idle session expires")
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := New("id")
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
