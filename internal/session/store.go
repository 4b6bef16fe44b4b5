package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store keeps session state for the lifetime of a conversation.
type Store interface {
	// Create stores a new session. The ID must not exist yet.
	Create(ctx context.Context, st State) error

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (State, error)

	// Save replaces the session if its stored version still equals
	// prevVersion, and returns ErrConflict otherwise.
	Save(ctx context.Context, st State, prevVersion int64) error
}

// MemoryStore is an in-process Store. Sessions idle for longer than the TTL
// are treated as gone and removed by Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]State
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]State),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) expired(st State, now time.Time) bool {
	return m.ttl > 0 && now.Sub(st.UpdatedAt) > m.ttl
}

func (m *MemoryStore) Create(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[st.ID]; ok && !m.expired(existing, m.now()) {
		return ErrConflict
	}
	m.sessions[st.ID] = st.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok || m.expired(st, m.now()) {
		return State{}, ErrNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st State, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[st.ID]
	if !ok || m.expired(current, m.now()) {
		return ErrNotFound
	}
	if current.Version != prevVersion {
		return ErrConflict
	}
	m.sessions[st.ID] = st.Clone()
	return nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, st := range m.sessions {
		if m.expired(st, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()
}
