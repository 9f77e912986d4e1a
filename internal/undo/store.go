package undo

import (
	"context"
	"sync"
)

// Store persists one Ledger per project.
type Store interface {
	Push(ctx context.Context, projectID string, e Entry) error
	Consume(ctx context.Context, projectID, token string, currentRevision int, currentHash string, requireLatest bool) (Entry, error)
	List(ctx context.Context, projectID string) ([]Entry, error)
}

// MemoryStore keeps ledgers in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	limit   int
	ledgers map[string]*Ledger
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit, ledgers: map[string]*Ledger{}}
}

func (m *MemoryStore) ledger(projectID string) *Ledger {
	l, ok := m.ledgers[projectID]
	if !ok {
		l = NewLedger(m.limit)
		m.ledgers[projectID] = l
	}
	return l
}

func (m *MemoryStore) Push(_ context.Context, projectID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger(projectID).Push(e)
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, projectID, token string, currentRevision int, currentHash string, requireLatest bool) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger(projectID).ConsumeWithLineage(token, currentRevision, currentHash, requireLatest)
}

func (m *MemoryStore) List(_ context.Context, projectID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry{}, m.ledger(projectID).Entries...), nil
}
