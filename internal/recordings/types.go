// Package recordings accepts contributed takes and persists them to object
// storage and Postgres
package recordings

import (
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/domain"
)

// Recording represents a stored take in the database
type Recording struct {
	ID              uuid.UUID
	ScriptID        string
	SessionID       uuid.UUID
	ContributorID   uuid.UUID
	ObjectKey       string
	DurationSeconds int
	Format          string
	FileSizeBytes   int64
	SampleRate      int
	Channels        int
	BitDepth        int
	IdempotencyKey  string
	Checksum        string
	CreatedAt       time.Time
}

// Stored renders the recording in its wire form
func (r *Recording) Stored(url string) domain.StoredRecording {
	return domain.StoredRecording{
		ID:              r.ID.String(),
		Status:          domain.RecordingStatusStored,
		ScriptID:        r.ScriptID,
		SessionID:       r.SessionID.String(),
		DurationSeconds: r.DurationSeconds,
		Format:          r.Format,
		FileSizeBytes:   r.FileSizeBytes,
		URL:             url,
		CreatedAt:       r.CreatedAt,
	}
}

// uploadForm is the metadata half of the multipart upload
type uploadForm struct {
	SessionID       string `validate:"required,uuid"`
	ScriptID        string
	DurationSeconds int    `validate:"min=0"`
	Format          string `validate:"required,oneof=wav webm m4a mp3 ogg"`
	FileSizeBytes   int64  `validate:"gt=0"`
	SampleRate      int    `validate:"omitempty,min=8000,max=192000"`
	Channels        int    `validate:"omitempty,min=1,max=8"`
	BitDepth        int    `validate:"omitempty,oneof=8 16 24 32"`
	IdempotencyKey  string `validate:"omitempty,max=128"`
	Checksum        string `validate:"omitempty,hexadecimal,len=64"`
}
