package recorder

import (
	"fmt"
	"os"
	"sync"

	"github.com/rx3lixir/voicebank/pkg/audio"
)

// Artifact is a finished take, ready to upload
type Artifact struct {
	Data            []byte
	MIMEType        string
	Format          string
	DurationSeconds int
	PCM             audio.PCMFormat
	Playback        *PlaybackHandle
}

// Size returns the encoded size in bytes
func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

// PlaybackHandle is a local file holding the artifact for preview. It is
// never sent anywhere and is removed by Revoke.
type PlaybackHandle struct {
	path string
	once sync.Once
	err  error
}

func newPlaybackHandle(dir string, data []byte) (*PlaybackHandle, error) {
	f, err := os.CreateTemp(dir, "voicebank-preview-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create preview file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close preview file: %w", err)
	}

	return &PlaybackHandle{path: f.Name()}, nil
}

// Path is the preview file location
func (h *PlaybackHandle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Revoke deletes the preview file. Safe to call more than once.
func (h *PlaybackHandle) Revoke() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
			h.err = err
		}
	})
	return h.err
}
