package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// MockStorage is an in-memory Storage and SaveStore for tests.
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*state.Session
	saves     map[uuid.UUID]map[int]*state.SaveSlot
	pingError error
}

var (
	_ Storage   = (*MockStorage)(nil)
	_ SaveStore = (*MockStorage)(nil)
)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID]*state.Session),
		saves:    make(map[uuid.UUID]map[int]*state.SaveSlot),
	}
}

// SetPingError configures the mock to fail on ping with the given error.
// Pass nil to make it succeed again.
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSession(ctx context.Context, sess *state.Session) error {
	if sess == nil {
		return errors.New("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, exists := m.sessions[id]
	if !exists {
		return nil, nil
	}
	return sess, nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) PutSave(ctx context.Context, save *state.SaveSlot) error {
	if save == nil {
		return errors.New("save cannot be nil")
	}
	if !ValidSlot(save.Slot) {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, save.Slot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saves[save.SessionID] == nil {
		m.saves[save.SessionID] = make(map[int]*state.SaveSlot)
	}
	m.saves[save.SessionID][save.Slot] = save
	return nil
}

func (m *MockStorage) GetSave(ctx context.Context, sessionID uuid.UUID, slot int) (*state.SaveSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves[sessionID][slot], nil
}

func (m *MockStorage) ListSaves(ctx context.Context, sessionID uuid.UUID) ([]*state.SaveSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*state.SaveSlot, 0, len(m.saves[sessionID]))
	for _, s := range m.saves[sessionID] {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *state.SaveSlot) int { return a.Slot - b.Slot })
	return out, nil
}

func (m *MockStorage) DeleteSave(ctx context.Context, sessionID uuid.UUID, slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves[sessionID], slot)
	return nil
}
