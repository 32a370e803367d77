package session

import (
	"context"
	"log/slog"
	"time"

	"finwise/internal/cache"

	"github.com/google/uuid"
)

// Manager owns every live session. Sessions idle for longer than the TTL
// are forgotten; nothing survives a restart.
type Manager struct {
	store *cache.LRUCache[*Session]
	ttl   time.Duration
}

// NewManager keeps up to maxSessions sessions with an idle timeout of ttl.
func NewManager(ttl time.Duration, maxSessions int, opts ...cache.Option) *Manager {
	opts = append([]cache.Option{cache.WithSlidingExpiry()}, opts...)
	return &Manager{
		store: cache.NewLRUCache[*Session](maxSessions, ttl, opts...),
		ttl:   ttl,
	}
}

// TTL is the idle timeout, used for cookie lifetimes.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Store exposes the backing cache so it can be registered for cleanup.
func (m *Manager) Store() cache.Cleaner { return m.store }

// Get returns the live session with the given id and refreshes its TTL.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return m.store.Get(id)
}

// Create starts a new logged-out session.
func (m *Manager) Create(ctx context.Context) *Session {
	s := New(uuid.NewString())
	m.store.Set(s.id, s)
	slog.DebugContext(ctx, "Session created", "session_id", s.id)
	return s
}

// Load returns the session for id or a fresh one when id is unknown or
// expired. created reports whether a new session was made.
func (m *Manager) Load(ctx context.Context, id string) (s *Session, created bool) {
	if s, ok := m.Get(id); ok {
		return s, false
	}
	return m.Create(ctx), true
}

// Rotate replaces a session's id, keeping its state. Called on login so a
// pre-login cookie cannot be reused.
func (m *Manager) Rotate(ctx context.Context, s *Session) *Session {
	snap := s.Snapshot()
	m.store.Delete(snap.ID)

	s.mu.Lock()
	s.id = uuid.NewString()
	s.mu.Unlock()

	m.store.Set(s.id, s)
	slog.DebugContext(ctx, "Session rotated", "old_session_id", snap.ID, "session_id", s.id)
	return s
}

// Destroy forgets a session.
func (m *Manager) Destroy(ctx context.Context, id string) {
	m.store.Delete(id)
	slog.DebugContext(ctx, "Session destroyed", "session_id", id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int { return m.store.Size() }

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
