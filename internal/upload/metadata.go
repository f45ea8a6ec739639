package upload

import (
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/recorder"
)

// BuildMetadata describes artifact for submission under sessionID
func BuildMetadata(a *recorder.Artifact, sessionID, idempotencyKey, checksum string) domain.UploadMetadata {
	return domain.UploadMetadata{
		SessionID:       sessionID,
		DurationSeconds: a.DurationSeconds,
		Format:          a.Format,
		FileSizeBytes:   a.Size(),
		SampleRate:      a.PCM.SampleRate,
		Channels:        a.PCM.Channels,
		BitDepth:        a.PCM.BitDepth,
		IdempotencyKey:  idempotencyKey,
		Checksum:        checksum,
	}
}
