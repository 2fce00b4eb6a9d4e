package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// MemoryStore is an in-process Store used in tests and single-device
// development runs. Writes enforce the same optimistic-concurrency
// check as the real backends.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.GameSession
	subs      map[uuid.UUID]map[int]OnChange
	nextSubID int

	failWith error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.GameSession),
		subs:     make(map[uuid.UUID]map[int]OnChange),
	}
}

// FailWith makes subsequent writes fail with err until reset with nil.
// Used to simulate network loss and permission revocation in tests.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryStore) Load(_ context.Context, id uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Write(_ context.Context, id uuid.UUID, snapshot *models.GameSession, baseRevision int64) error {
	m.mu.Lock()
	if m.failWith != nil {
		err := m.failWith
		m.mu.Unlock()
		return err
	}

	current, exists := m.sessions[id]
	if exists && current.Revision != baseRevision {
		remote := current.Clone()
		m.mu.Unlock()
		return &ConflictError{Remote: remote}
	}
	if !exists && baseRevision != 0 {
		m.mu.Unlock()
		return ErrNotFound
	}

	stored := snapshot.Clone()
	m.sessions[id] = stored

	var fns []OnChange
	for _, fn := range m.subs[id] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(stored.Clone())
	}
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, id uuid.UUID, fn OnChange) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[id] == nil {
		m.subs[id] = make(map[int]OnChange)
	}
	subID := m.nextSubID
	m.nextSubID++
	m.subs[id][subID] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[id], subID)
	}, nil
}
