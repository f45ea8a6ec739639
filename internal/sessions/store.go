// Package sessions issues and validates recording sessions
package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/domain"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
	ErrMismatch = errors.New("session bound to another script")
)

// Record is a persisted recording session
type Record struct {
	ID            uuid.UUID
	ScriptID      string
	ContributorID uuid.UUID
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Session renders the record in its wire form
func (r *Record) Session() domain.RecordingSession {
	return domain.RecordingSession{
		SessionID: r.ID.String(),
		ScriptID:  r.ScriptID,
		ExpiresAt: r.ExpiresAt,
	}
}

type Store interface {
	CreateSession(ctx context.Context, rec *Record) error
	GetSession(ctx context.Context, id uuid.UUID) (*Record, error)
}

// MemoryStore keeps sessions in process, for development and tests
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]Record)}
}

func (m *MemoryStore) CreateSession(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.ID] = *rec
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
