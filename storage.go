package portal

import (
	"context"
	"sync"
)

// SessionStorage persists the credential triple between processes. Load
// returns (nil, nil) when no session is stored. Save and Clear are
// all-or-nothing over the triple; implementations must never leave a
// partial record behind.
type SessionStorage interface {
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, session StoredSession) error
	Clear(ctx context.Context) error
}

// MemoryStorage is a process-local SessionStorage, useful for tests and
// for deployments that do not want sessions to survive a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	session *StoredSession
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(_ context.Context) (*StoredSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, nil
	}
	copied := *m.session
	return &copied, nil
}

func (m *MemoryStorage) Save(_ context.Context, session StoredSession) error {
	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
