package upload

import (
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/domain"
)

// State is the upload lifecycle: Idle, Uploading, Succeeded or Failed
type State interface {
	uploadState()
}

type Idle struct{}

// Uploading carries synthetic progress in percent, always below 100
type Uploading struct {
	Progress int
}

type Succeeded struct {
	Recording domain.StoredRecording
}

type Failed struct {
	Message   string
	Retryable bool
	Detail    apierror.Detail
	Err       error
}

func (Idle) uploadState()      {}
func (Uploading) uploadState() {}
func (Succeeded) uploadState() {}
func (Failed) uploadState()    {}

// Progress reports percent complete for any state
func Progress(s State) int {
	switch v := s.(type) {
	case Uploading:
		return v.Progress
	case Succeeded:
		return 100
	default:
		return 0
	}
}
