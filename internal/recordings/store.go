package recordings

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("recording not found")
	// ErrDuplicate is returned by CreateRecording when a concurrent upload
	// already claimed the idempotency key or checksum
	ErrDuplicate = errors.New("recording already exists")
)

type DBStore interface {
	CreateRecording(ctx context.Context, rec *Recording) error
	GetRecording(ctx context.Context, id uuid.UUID) (*Recording, error)
	FindDuplicate(ctx context.Context, idempotencyKey, scriptID, checksum string) (*Recording, error)
}

type FileStore interface {
	UploadRecording(ctx context.Context, id uuid.UUID, reader io.Reader, size int64, format string) (string, error)
	DeleteRecording(ctx context.Context, objectName string) error
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// MemoryStore keeps recording rows in process, for development and tests
type MemoryStore struct {
	mu   sync.RWMutex
	rows []Recording
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) CreateRecording(ctx context.Context, rec *Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dup := m.findLocked(rec.IdempotencyKey, rec.ScriptID, rec.Checksum); dup != nil {
		return ErrDuplicate
	}
	m.rows = append(m.rows, *rec)
	return nil
}

func (m *MemoryStore) GetRecording(ctx context.Context, id uuid.UUID) (*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rows {
		if r.ID == id {
			found := r
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindDuplicate(ctx context.Context, idempotencyKey, scriptID, checksum string) (*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if dup := m.findLocked(idempotencyKey, scriptID, checksum); dup != nil {
		return dup, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) findLocked(idempotencyKey, scriptID, checksum string) *Recording {
	for _, r := range m.rows {
		if sameUpload(&r, idempotencyKey, scriptID, checksum) {
			found := r
			return &found
		}
	}
	return nil
}

// sameUpload reports whether r is the upload identified by the key or by
// the script and content checksum
func sameUpload(r *Recording, idempotencyKey, scriptID, checksum string) bool {
	if idempotencyKey != "" && r.IdempotencyKey == idempotencyKey {
		return true
	}
	return checksum != "" && r.ScriptID == scriptID && r.Checksum == checksum
}
