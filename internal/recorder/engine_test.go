package recorder_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rx3lixir/voicebank/internal/recorder"
	"github.com/rx3lixir/voicebank/internal/recorder/recordertest"
	"github.com/rx3lixir/voicebank/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	engine     *recorder.Engine
	device     *recordertest.Device
	clock      *recordertest.Clock
	previewDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		device:     &recordertest.Device{},
		clock:      recordertest.NewClock(epoch),
		previewDir: t.TempDir(),
	}
	h.engine = recorder.NewEngine(h.device, recorder.Options{
		Clock:      h.clock,
		PreviewDir: h.previewDir,
	}, logger.Discard())
	t.Cleanup(h.engine.Close)
	return h
}

func waitStatus[T recorder.Status](t *testing.T, e *recorder.Engine) T {
	t.Helper()
	var got T
	require.Eventually(t, func() bool {
		s, ok := e.Status().(T)
		got = s
		return ok
	}, 2*time.Second, 2*time.Millisecond)
	return got
}

func (h *harness) startRecording(t *testing.T, max int) *recordertest.Stream {
	t.Helper()
	h.engine.Start(max)
	waitStatus[recorder.Recording](t, h.engine)
	stream := h.device.Last()
	require.NotNil(t, stream)
	return stream
}

func TestEngine_StartRecordStop(t *testing.T) {
	h := newHarness(t)

	stream := h.startRecording(t, 60)

	stream.Push(make([]byte, 32000))
	h.clock.AdvanceSeconds(2)

	rec, ok := h.engine.Status().(recorder.Recording)
	require.True(t, ok)
	assert.Equal(t, 2, rec.ElapsedSeconds)
	assert.Equal(t, epoch, rec.StartTime)

	h.engine.Stop()
	done := waitStatus[recorder.Completed](t, h.engine)

	assert.Equal(t, 2, done.ElapsedSeconds)
	require.NotNil(t, done.Artifact)
	assert.Equal(t, "audio/wav", done.Artifact.MIMEType)
	assert.Equal(t, 2, done.Artifact.DurationSeconds)
	assert.Equal(t, int64(44+32000), done.Artifact.Size())
	assert.Equal(t, "RIFF", string(done.Artifact.Data[:4]))

	assert.Equal(t, 1, stream.Closes())
	assert.Zero(t, h.clock.Tickers())

	path := done.Artifact.Playback.Path()
	assert.FileExists(t, path)

	h.engine.Reset()
	assert.IsType(t, recorder.Idle{}, h.engine.Status())
	assert.NoFileExists(t, path)
}

func TestEngine_InitializingMessage(t *testing.T) {
	h := newHarness(t)
	h.device.Gate = make(chan struct{})

	h.engine.Start(10)
	pending := waitStatus[recorder.Initializing](t, h.engine)
	assert.Equal(t, "requesting microphone", pending.Message)

	close(h.device.Gate)
	waitStatus[recorder.Recording](t, h.engine)
}

func TestEngine_DeviceDenied(t *testing.T) {
	h := newHarness(t)
	h.device.OpenErr = errors.New("permission denied")

	h.engine.Start(10)
	failed := waitStatus[recorder.Failed](t, h.engine)
	assert.Equal(t, recorder.CodeDeviceUnavailable, failed.Code)
	assert.NotEmpty(t, failed.Message)

	// terminal until reset
	h.engine.Start(10)
	assert.IsType(t, recorder.Failed{}, h.engine.Status())
	assert.Equal(t, 1, h.device.Opens())

	h.engine.Reset()
	h.device.OpenErr = nil
	h.startRecording(t, 10)
}

func TestEngine_AutoStopReleasesDeviceOnce(t *testing.T) {
	h := newHarness(t)
	stream := h.startRecording(t, 3)

	h.clock.AdvanceSeconds(5)

	done, ok := h.engine.Status().(recorder.Completed)
	require.True(t, ok)
	assert.Equal(t, 3, done.ElapsedSeconds)
	assert.Equal(t, 1, stream.Closes())
	assert.Zero(t, h.clock.Tickers())

	// a later stop must not release again
	h.engine.Stop()
	h.engine.Reset()
	assert.Equal(t, 1, stream.Closes())
}

func TestEngine_TwoMinuteCapAfter125Seconds(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, 120)

	h.clock.AdvanceSeconds(125)

	done, ok := h.engine.Status().(recorder.Completed)
	require.True(t, ok)
	assert.Equal(t, 120, done.ElapsedSeconds)
	assert.Equal(t, 120, done.Artifact.DurationSeconds)
	assert.Equal(t, 0, h.device.Live())
}

func TestEngine_PauseResumePreservesElapsed(t *testing.T) {
	h := newHarness(t)
	stream := h.startRecording(t, 60)

	h.clock.AdvanceSeconds(2)
	h.engine.Pause()

	paused, ok := h.engine.Status().(recorder.Paused)
	require.True(t, ok)
	assert.Equal(t, 2, paused.TotalElapsedSeconds)
	assert.Zero(t, h.clock.Tickers())
	assert.Equal(t, 1, stream.Pauses())

	h.clock.AdvanceSeconds(30)
	paused, ok = h.engine.Status().(recorder.Paused)
	require.True(t, ok)
	assert.Equal(t, 2, paused.TotalElapsedSeconds)

	h.engine.Resume()
	h.clock.AdvanceSeconds(1)

	rec, ok := h.engine.Status().(recorder.Recording)
	require.True(t, ok)
	assert.Equal(t, 3, rec.ElapsedSeconds)
	assert.Equal(t, 1, stream.Resumes())
	assert.Equal(t, 1, h.clock.Tickers())
	assert.Equal(t, 0, stream.Closes())
}

func TestEngine_StopWhilePausedKeepsOnlyRecordedAudio(t *testing.T) {
	h := newHarness(t)
	stream := h.startRecording(t, 60)

	stream.Push(make([]byte, 32000))
	require.Eventually(t, func() bool { return stream.Pending() == 0 }, 2*time.Second, 2*time.Millisecond)
	h.clock.AdvanceSeconds(1)
	h.engine.Pause()

	// buffered by the device while suspended
	stream.Push(make([]byte, 16000))
	h.engine.Stop()

	done := waitStatus[recorder.Completed](t, h.engine)
	assert.Equal(t, 1, done.ElapsedSeconds)
	assert.Equal(t, int64(44+32000), done.Artifact.Size())
	assert.Equal(t, 1, stream.Closes())
}

func TestEngine_ResetFromEveryState(t *testing.T) {
	states := map[string]func(t *testing.T, h *harness){
		"recording": func(t *testing.T, h *harness) {
			h.startRecording(t, 60)
			h.clock.AdvanceSeconds(3)
		},
		"paused": func(t *testing.T, h *harness) {
			h.startRecording(t, 60)
			h.clock.AdvanceSeconds(3)
			h.engine.Pause()
			waitStatus[recorder.Paused](t, h.engine)
		},
		"completed": func(t *testing.T, h *harness) {
			h.startRecording(t, 60)
			h.clock.AdvanceSeconds(3)
			h.engine.Stop()
			waitStatus[recorder.Completed](t, h.engine)
		},
		"error": func(t *testing.T, h *harness) {
			stream := h.startRecording(t, 60)
			stream.Fail(errors.New("unplugged"))
			waitStatus[recorder.Failed](t, h.engine)
		},
	}

	for name, setup := range states {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(t, h)

			h.engine.Reset()

			assert.IsType(t, recorder.Idle{}, h.engine.Status())
			assert.Zero(t, recorder.Elapsed(h.engine.Status()))
			assert.Zero(t, h.device.Live())
			assert.Zero(t, h.clock.Tickers())
			assert.Equal(t, 1, h.device.Last().Closes())

			entries, err := os.ReadDir(h.previewDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestEngine_LateAcquisitionIsReleased(t *testing.T) {
	h := newHarness(t)
	h.device.Gate = make(chan struct{})

	h.engine.Start(10)
	waitStatus[recorder.Initializing](t, h.engine)

	h.engine.Reset()

	require.Eventually(t, func() bool {
		s := h.device.Last()
		return s != nil && s.Closes() == 1
	}, 2*time.Second, 2*time.Millisecond)
	assert.IsType(t, recorder.Idle{}, h.engine.Status())
	assert.Zero(t, h.device.Live())
}

func TestEngine_CaptureFailure(t *testing.T) {
	h := newHarness(t)
	stream := h.startRecording(t, 60)

	stream.Fail(errors.New("device removed"))
	failed := waitStatus[recorder.Failed](t, h.engine)

	assert.Equal(t, recorder.CodeCaptureFailed, failed.Code)
	assert.Contains(t, failed.Detail.Details, "device removed")
	assert.Equal(t, 1, stream.Closes())
	assert.Zero(t, h.clock.Tickers())

	// only reset leaves the error state
	h.engine.Resume()
	h.engine.Stop()
	assert.IsType(t, recorder.Failed{}, h.engine.Status())
}

func TestEngine_IllegalCommandsIgnored(t *testing.T) {
	h := newHarness(t)

	h.engine.Pause()
	h.engine.Resume()
	h.engine.Stop()
	assert.IsType(t, recorder.Idle{}, h.engine.Status())
	assert.Zero(t, h.device.Opens())

	h.startRecording(t, 60)
	h.engine.Resume()
	h.engine.Start(60)
	assert.IsType(t, recorder.Recording{}, h.engine.Status())
	assert.Equal(t, 1, h.device.Opens())
}

func TestEngine_CloseReleasesDevice(t *testing.T) {
	h := newHarness(t)
	stream := h.startRecording(t, 60)

	h.engine.Close()

	assert.Equal(t, 1, stream.Closes())
	assert.Zero(t, h.clock.Tickers())
	assert.IsType(t, recorder.Idle{}, h.engine.Status())

	// commands after close are no-ops
	h.engine.Start(10)
	h.engine.Reset()
}

func TestEngine_Subscribe(t *testing.T) {
	h := newHarness(t)
	updates, cancel := h.engine.Subscribe(16)
	defer cancel()

	assert.IsType(t, recorder.Idle{}, <-updates)

	h.engine.Start(60)
	assert.IsType(t, recorder.Initializing{}, <-updates)
	assert.IsType(t, recorder.Recording{}, <-updates)
}

func TestProgressAndRemaining(t *testing.T) {
	assert.Equal(t, 0.5, recorder.Progress(60, 120))
	assert.Equal(t, 1.0, recorder.Progress(130, 120))
	assert.Equal(t, 0.0, recorder.Progress(-1, 120))
	assert.Equal(t, 0.0, recorder.Progress(5, 0))

	assert.Equal(t, 60, recorder.Remaining(60, 120))
	assert.Equal(t, 0, recorder.Remaining(125, 120))
}
