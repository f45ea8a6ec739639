package script

import (
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
)

// State is the script load lifecycle: Idle, Loading, Loaded or Failed
type State interface {
	scriptState()
}

type Idle struct{}

type Loading struct {
	Option duration.Option
}

type Loaded struct {
	Option  duration.Option
	Script  domain.Script
	Session domain.RecordingSession
}

type Failed struct {
	Option    duration.Option
	Detail    apierror.Detail
	Retryable bool
	Err       error
}

func (Idle) scriptState()    {}
func (Loading) scriptState() {}
func (Loaded) scriptState()  {}
func (Failed) scriptState()  {}
