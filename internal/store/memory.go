package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"duel-relay/internal/session"
)

// Memory is a process-local session store. Writes are compare-and-swap on
// Version under one mutex.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: map[string]*session.Session{}}
}

func (m *Memory) Create(_ context.Context, s *session.Session) error {
	if s == nil || s.ID == "" {
		return session.ErrInvalidRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s exists", session.ErrConflict, s.ID)
	}
	s.Version = 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) QueryByField(_ context.Context, field, value string) ([]*session.Session, error) {
	match, err := fieldMatcher(field)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*session.Session{}
	for _, s := range m.sessions {
		if match(s) == value {
			out = append(out, s.Clone())
		}
	}
	sortSessions(out)
	return out, nil
}

func (m *Memory) List(_ context.Context) ([]*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sortSessions(out)
	return out, nil
}

func (m *Memory) Save(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return session.ErrNotFound
	}
	if cur.Version != s.Version {
		return session.ErrConflict
	}
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return session.ErrNotFound
	}
	if cur.Version != s.Version {
		return session.ErrConflict
	}
	delete(m.sessions, s.ID)
	return nil
}

func fieldMatcher(field string) (func(*session.Session) string, error) {
	switch field {
	case session.FieldName:
		return func(s *session.Session) string { return s.Name }, nil
	case session.FieldSlot0Client:
		return func(s *session.Session) string { return s.Slots[0].ClientID }, nil
	case session.FieldSlot1Client:
		return func(s *session.Session) string { return s.Slots[1].ClientID }, nil
	default:
		return nil, fmt.Errorf("%w: unknown field %q", session.ErrInvalidRequest, field)
	}
}

func sortSessions(out []*session.Session) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}
