package domain

import "time"

// Script is the prompt a contributor reads aloud
type Script struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	DurationCategory string `json:"durationCategory"`
	LanguageID       string `json:"languageId"`
}

// RecordingSession is a perishable, server-issued capability that binds a
// script to an upload window
type RecordingSession struct {
	SessionID string    `json:"sessionId"`
	ScriptID  string    `json:"scriptId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now
func (s RecordingSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// CreateSessionRequest is the body of POST recording-session
type CreateSessionRequest struct {
	ScriptID string `json:"scriptId" validate:"required"`
}

// UploadMetadata accompanies the audio bytes of POST recording
type UploadMetadata struct {
	SessionID       string `json:"sessionId"`
	DurationSeconds int    `json:"durationSeconds"`
	Format          string `json:"format"`
	FileSizeBytes   int64  `json:"fileSizeBytes"`
	SampleRate      int    `json:"sampleRate"`
	Channels        int    `json:"channels"`
	BitDepth        int    `json:"bitDepth"`
	IdempotencyKey  string `json:"idempotencyKey"`
	Checksum        string `json:"checksum"`
}

// StoredRecording is what the recording service returns after persisting
type StoredRecording struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	ScriptID        string    `json:"scriptId"`
	SessionID       string    `json:"sessionId"`
	DurationSeconds int       `json:"durationSeconds"`
	Format          string    `json:"format"`
	FileSizeBytes   int64     `json:"fileSizeBytes"`
	URL             string    `json:"url,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

const (
	RecordingStatusStored = "stored"
)
