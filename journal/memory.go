package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/swingsim/session"
)

// Memory is an in-process Store. It keeps deep copies, so callers never
// share state with it.
type Memory struct {
	mu      sync.Mutex
	byOwner map[string]map[string]*session.Session
	changes notifier

	failSave func(s *session.Session) error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{byOwner: make(map[string]map[string]*session.Session)}
}

func (m *Memory) LoadSession(_ context.Context, ownerID, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byOwner[ownerID][id]
	if !ok {
		return nil, fmt.Errorf("load session %s: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *Memory) SaveSession(ctx context.Context, ownerID string, s *session.Session) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if s.OwnerID != ownerID {
		return fmt.Errorf("save session %s: owner %q does not match %q", s.ID, s.OwnerID, ownerID)
	}

	m.mu.Lock()
	fail := m.failSave
	m.mu.Unlock()
	if fail != nil {
		if err := fail(s); err != nil {
			return fmt.Errorf("save session %s: %w", s.ID, err)
		}
	}

	m.mu.Lock()
	for owner, sessions := range m.byOwner {
		if _, ok := sessions[s.ID]; ok && owner != ownerID {
			m.mu.Unlock()
			return fmt.Errorf("save session %s: %w", s.ID, ErrNotFound)
		}
	}
	if m.byOwner[ownerID] == nil {
		m.byOwner[ownerID] = make(map[string]*session.Session)
	}
	m.byOwner[ownerID][s.ID] = s.Clone()
	m.mu.Unlock()

	m.changes.publish(Change{Op: Saved, OwnerID: ownerID, SessionID: s.ID})
	return nil
}

// SetFailSave makes SaveSession return f's error, if any, instead of
// storing. A nil f restores normal saves.
func (m *Memory) SetFailSave(f func(s *session.Session) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = f
}

func (m *Memory) ListSessions(_ context.Context, ownerID string) ([]*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*session.Session, 0, len(m.byOwner[ownerID]))
	for _, s := range m.byOwner[ownerID] {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteSession(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	if _, ok := m.byOwner[ownerID][id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	delete(m.byOwner[ownerID], id)
	m.mu.Unlock()

	m.changes.publish(Change{Op: Deleted, OwnerID: ownerID, SessionID: id})
	return nil
}

func (m *Memory) Changes() <-chan Change {
	return m.changes.subscribe()
}

func (m *Memory) Close() error {
	m.changes.close()
	return nil
}
