package recorder

import (
	"context"

	"github.com/rx3lixir/voicebank/pkg/audio"
)

// Device hands out exclusive capture streams. Open may block while the
// user is asked for microphone permission; an error means access was denied
// or no device is present. ctx bounds the acquisition only; the returned
// stream lives until Close.
type Device interface {
	Open(ctx context.Context, format audio.PCMFormat) (Stream, error)
}

// Stream is a live capture. Chunks delivers raw PCM in the requested format
// and is closed when capture ends, either after Close or on failure, in
// which case Err reports why.
type Stream interface {
	Chunks() <-chan []byte
	Err() error
	Pause() error
	Resume() error
	Close() error
}
