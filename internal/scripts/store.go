// Package scripts issues prompt scripts by duration tier
package scripts

import (
	"context"
	"errors"
	"sync"

	"github.com/rx3lixir/voicebank/internal/domain"
)

var ErrNotFound = errors.New("script not found")

type Store interface {
	ListActive(ctx context.Context, tier string) ([]domain.Script, error)
	GetByID(ctx context.Context, id string) (*domain.Script, error)
}

// MemoryStore keeps scripts in process, for development and tests
type MemoryStore struct {
	mu      sync.RWMutex
	scripts []domain.Script
}

func NewMemoryStore(scripts ...domain.Script) *MemoryStore {
	return &MemoryStore{scripts: scripts}
}

func (m *MemoryStore) Add(s domain.Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, s)
}

func (m *MemoryStore) ListActive(ctx context.Context, tier string) ([]domain.Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.Script{}
	for _, s := range m.scripts {
		if s.DurationCategory == tier {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.scripts {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, ErrNotFound
}
