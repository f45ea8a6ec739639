package recorder

import (
	"time"

	"github.com/rx3lixir/voicebank/internal/apierror"
)

// Status is the recording lifecycle. Exactly one of Idle, Initializing,
// Recording, Paused, Completed or Failed.
type Status interface {
	recorderStatus()
}

type Idle struct{}

type Initializing struct {
	Message string
}

type Recording struct {
	StartTime      time.Time
	ElapsedSeconds int
}

type Paused struct {
	PausedAt            time.Time
	TotalElapsedSeconds int
}

type Completed struct {
	Artifact       *Artifact
	ElapsedSeconds int
}

// Failed is terminal until Reset
type Failed struct {
	Message string
	Code    string
	Detail  apierror.Detail
}

func (Idle) recorderStatus()         {}
func (Initializing) recorderStatus() {}
func (Recording) recorderStatus()    {}
func (Paused) recorderStatus()       {}
func (Completed) recorderStatus()    {}
func (Failed) recorderStatus()       {}

const (
	CodeDeviceUnavailable = apierror.KeyDeviceUnavailable
	CodeCaptureFailed     = "capture_failed"
	CodeEncodeFailed      = "encode_failed"
)

// Elapsed returns the counted seconds carried by s
func Elapsed(s Status) int {
	switch v := s.(type) {
	case Recording:
		return v.ElapsedSeconds
	case Paused:
		return v.TotalElapsedSeconds
	case Completed:
		return v.ElapsedSeconds
	default:
		return 0
	}
}

// Progress is elapsed/max clamped to [0, 1]
func Progress(elapsed, max int) float64 {
	if max <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(max)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Remaining is max-elapsed, never negative
func Remaining(elapsed, max int) int {
	if r := max - elapsed; r > 0 {
		return r
	}
	return 0
}
