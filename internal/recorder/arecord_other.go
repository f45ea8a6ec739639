//go:build !unix

package recorder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rx3lixir/voicebank/pkg/audio"
)

var ErrNoCaptureTool = errors.New("capture tool not found")

// ArecordDevice is unavailable on this platform; Open always fails
type ArecordDevice struct{}

func NewArecordDevice(binary, device string, log *slog.Logger) *ArecordDevice {
	return &ArecordDevice{}
}

func (d *ArecordDevice) Open(ctx context.Context, format audio.PCMFormat) (Stream, error) {
	return nil, ErrNoCaptureTool
}
