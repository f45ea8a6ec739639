// Package recorder captures one bounded take from a microphone: acquire the
// device, count unpaused seconds, stop at the cap and hand back an encoded
// artifact. All state changes happen on a single loop goroutine.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/observe"
	"github.com/rx3lixir/voicebank/pkg/audio"
)

const (
	tickInterval    = time.Second
	drainTimeout    = 2 * time.Second
	commandBacklog  = 32
	initMessage     = "requesting microphone"
	wavMIMEType     = "audio/wav"
	wavFormat       = "wav"
	captureEndedMsg = "capture stopped unexpectedly"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdPause
	cmdResume
	cmdStop
	cmdReset
	cmdStatus
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	case cmdStop:
		return "stop"
	case cmdReset:
		return "reset"
	case cmdStatus:
		return "status"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	max   int
	reply chan Status
}

type openResult struct {
	gen    uint64
	stream Stream
	err    error
}

type Options struct {
	Format     audio.PCMFormat
	Clock      Clock
	PreviewDir string
	Translator *apierror.Translator
}

type Engine struct {
	device     Device
	clock      Clock
	format     audio.PCMFormat
	previewDir string
	translator *apierror.Translator
	log        *slog.Logger

	commands chan command
	opened   chan openResult
	shutdown chan struct{}
	exited   chan struct{}
	closing  sync.Once
	openers  sync.WaitGroup

	published *observe.Cell[Status]

	// Loop-owned state
	status     Status
	gen        uint64
	max        int
	startTime  time.Time
	elapsed    int
	chunks     [][]byte
	stream     Stream
	ticker     Ticker
	cancelOpen context.CancelFunc
	artifact   *Artifact
}

// NewEngine starts the engine loop. Close stops it.
func NewEngine(device Device, opts Options, log *slog.Logger) *Engine {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Format == (audio.PCMFormat{}) {
		opts.Format = audio.Speech
	}
	if opts.Translator == nil {
		opts.Translator = apierror.NewTranslator(nil)
	}

	e := &Engine{
		device:     device,
		clock:      opts.Clock,
		format:     opts.Format,
		previewDir: opts.PreviewDir,
		translator: opts.Translator,
		log:        log.With("component", "recorder"),
		commands:   make(chan command, commandBacklog),
		opened:     make(chan openResult),
		shutdown:   make(chan struct{}),
		exited:     make(chan struct{}),
		published:  observe.NewCell[Status](Idle{}),
		status:     Idle{},
	}

	go e.run()
	return e
}

// Start begins a take capped at maxDurationSeconds. Only valid from Idle.
func (e *Engine) Start(maxDurationSeconds int) {
	e.enqueue(command{kind: cmdStart, max: maxDurationSeconds})
}

// Pause is only valid while recording
func (e *Engine) Pause() { e.enqueue(command{kind: cmdPause}) }

// Resume is only valid while paused
func (e *Engine) Resume() { e.enqueue(command{kind: cmdResume}) }

// Stop finalizes the take
func (e *Engine) Stop() { e.enqueue(command{kind: cmdStop}) }

// Reset returns to Idle from any state and waits until the device has been
// released.
func (e *Engine) Reset() {
	reply := make(chan Status, 1)
	if !e.enqueue(command{kind: cmdReset, reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-e.exited:
	}
}

// Status returns the state after every previously issued command and
// delivered tick has been applied
func (e *Engine) Status() Status {
	reply := make(chan Status, 1)
	if !e.enqueue(command{kind: cmdStatus, reply: reply}) {
		return e.published.Get()
	}
	select {
	case s := <-reply:
		return s
	case <-e.exited:
		return e.published.Get()
	}
}

// Subscribe streams status changes starting with the current one
func (e *Engine) Subscribe(buf int) (<-chan Status, func()) {
	return e.published.Subscribe(buf)
}

// Close releases the device, removes the preview file and stops the loop
func (e *Engine) Close() {
	e.closing.Do(func() { close(e.shutdown) })
	<-e.exited
	e.openers.Wait()
}

func (e *Engine) enqueue(cmd command) bool {
	select {
	case e.commands <- cmd:
		return true
	case <-e.exited:
		return false
	}
}

// run is the main event loop - handles ALL state changes sequentially
func (e *Engine) run() {
	defer close(e.exited)

	for {
		var chunks <-chan []byte
		if e.stream != nil {
			chunks = e.stream.Chunks()
		}
		var ticks <-chan time.Time
		if e.ticker != nil {
			ticks = e.ticker.C()
		}

		select {
		case cmd := <-e.commands:
			e.handleCommand(cmd)

		case res := <-e.opened:
			e.handleOpened(res)

		case chunk, ok := <-chunks:
			if !ok {
				e.handleStreamEnded()
				continue
			}
			e.handleChunk(chunk)

		case <-ticks:
			e.handleTick()

		case <-e.shutdown:
			e.teardown()
			e.setStatus(Idle{})
			e.log.Debug("recorder loop stopped")
			return
		}
	}
}

func (e *Engine) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdStart:
		e.handleStart(cmd.max)
	case cmdPause:
		e.handlePause()
	case cmdResume:
		e.handleResume()
	case cmdStop:
		e.handleStop()
	case cmdReset:
		e.teardown()
		e.setStatus(Idle{})
		e.log.Debug("recorder reset")
	case cmdStatus:
	}

	if cmd.reply != nil {
		cmd.reply <- e.status
	}
}

func (e *Engine) handleStart(max int) {
	if _, ok := e.status.(Idle); !ok {
		e.ignored(cmdStart)
		return
	}
	if max <= 0 {
		e.log.Warn("start ignored: non-positive duration cap", "max_seconds", max)
		return
	}

	e.gen++
	e.max = max
	e.elapsed = 0
	e.chunks = nil
	e.setStatus(Initializing{Message: initMessage})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancelOpen = cancel

	gen := e.gen
	e.openers.Add(1)
	go func() {
		defer e.openers.Done()
		stream, err := e.device.Open(ctx, e.format)
		select {
		case e.opened <- openResult{gen: gen, stream: stream, err: err}:
		case <-e.shutdown:
			if stream != nil {
				_ = stream.Close()
			}
		}
	}()

	e.log.Info("recording requested", "max_seconds", max)
}

func (e *Engine) handleOpened(res openResult) {
	_, initializing := e.status.(Initializing)
	if res.gen != e.gen || !initializing {
		if res.stream != nil {
			_ = res.stream.Close()
			e.log.Debug("late device acquisition released", "gen", res.gen)
		}
		return
	}

	if e.cancelOpen != nil {
		e.cancelOpen()
		e.cancelOpen = nil
	}

	if res.err != nil {
		detail := e.translator.TranslateKey(apierror.KeyDeviceUnavailable, nil, "allow_microphone")
		e.setStatus(Failed{Message: detail.Title, Code: CodeDeviceUnavailable, Detail: detail})
		e.log.Warn("microphone unavailable", "error", res.err)
		return
	}

	e.stream = res.stream
	e.startTime = e.clock.Now()
	e.ticker = e.clock.NewTicker(tickInterval)
	e.setStatus(Recording{StartTime: e.startTime})
	e.log.Info("recording started", "max_seconds", e.max)
}

func (e *Engine) handleChunk(chunk []byte) {
	if _, ok := e.status.(Recording); !ok {
		return
	}
	if len(chunk) > 0 {
		e.chunks = append(e.chunks, chunk)
	}
}

func (e *Engine) handleTick() {
	if _, ok := e.status.(Recording); !ok {
		return
	}

	e.elapsed++
	if e.elapsed >= e.max {
		e.elapsed = e.max
		e.log.Info("duration cap reached", "elapsed_seconds", e.elapsed)
		e.complete()
		return
	}
	e.setStatus(Recording{StartTime: e.startTime, ElapsedSeconds: e.elapsed})
}

func (e *Engine) handlePause() {
	if _, ok := e.status.(Recording); !ok {
		e.ignored(cmdPause)
		return
	}
	e.stopTicker()
	if err := e.stream.Pause(); err != nil {
		e.log.Warn("failed to suspend capture", "error", err)
	}
	e.setStatus(Paused{PausedAt: e.clock.Now(), TotalElapsedSeconds: e.elapsed})
}

func (e *Engine) handleResume() {
	if _, ok := e.status.(Paused); !ok {
		e.ignored(cmdResume)
		return
	}
	if err := e.stream.Resume(); err != nil {
		e.log.Warn("failed to resume capture", "error", err)
	}
	e.ticker = e.clock.NewTicker(tickInterval)
	e.setStatus(Recording{StartTime: e.startTime, ElapsedSeconds: e.elapsed})
}

func (e *Engine) handleStop() {
	switch e.status.(type) {
	case Recording, Paused:
		e.complete()
	default:
		e.ignored(cmdStop)
	}
}

func (e *Engine) handleStreamEnded() {
	err := e.stream.Err()
	if err == nil {
		err = errors.New(captureEndedMsg)
	}
	e.releaseDevice(false)
	e.stopTicker()
	e.chunks = nil

	detail := e.translator.TranslateKey(apierror.KeyDeviceUnavailable, nil, "allow_microphone")
	detail.Details = err.Error()
	e.setStatus(Failed{Message: detail.Title, Code: CodeCaptureFailed, Detail: detail})
	e.log.Error("capture failed", "error", err, "elapsed_seconds", e.elapsed)
}

// complete is the single transition into Completed for stop and auto-stop.
// Audio still buffered in the stream is kept only when stopping while
// recording; a paused stream holds nothing but paused time.
func (e *Engine) complete() {
	_, recording := e.status.(Recording)
	e.stopTicker()
	e.releaseDevice(recording)

	pcm := bytes.Join(e.chunks, nil)
	e.chunks = nil

	data, err := audio.EncodeWAV(pcm, e.format)
	if err != nil {
		detail := e.translator.TranslateKey(apierror.KeyInternal, nil, "retry")
		e.setStatus(Failed{Message: detail.Title, Code: CodeEncodeFailed, Detail: detail})
		e.log.Error("failed to encode recording", "error", err)
		return
	}

	artifact := &Artifact{
		Data:            data,
		MIMEType:        wavMIMEType,
		Format:          wavFormat,
		DurationSeconds: e.elapsed,
		PCM:             e.format,
	}

	playback, err := newPlaybackHandle(e.previewDir, data)
	if err != nil {
		e.log.Warn("preview unavailable", "error", err)
	} else {
		artifact.Playback = playback
	}

	e.artifact = artifact
	e.setStatus(Completed{Artifact: artifact, ElapsedSeconds: e.elapsed})
	e.log.Info("recording completed",
		"elapsed_seconds", e.elapsed,
		"size_bytes", len(data),
		"preview", playback.Path(),
	)
}

// teardown releases everything the current take holds
func (e *Engine) teardown() {
	e.gen++
	if e.cancelOpen != nil {
		e.cancelOpen()
		e.cancelOpen = nil
	}
	e.stopTicker()
	e.releaseDevice(false)
	e.chunks = nil
	e.elapsed = 0
	e.max = 0
	if e.artifact != nil {
		if err := e.artifact.Playback.Revoke(); err != nil {
			e.log.Warn("failed to remove preview file", "error", err)
		}
		e.artifact = nil
	}
}

// releaseDevice closes the stream. With drain set, PCM still buffered in
// the stream is appended to the take first.
func (e *Engine) releaseDevice(drain bool) {
	if e.stream == nil {
		return
	}
	stream := e.stream
	e.stream = nil

	if err := stream.Close(); err != nil {
		e.log.Warn("failed to release microphone", "error", err)
	}
	if !drain {
		return
	}

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return
			}
			if len(chunk) > 0 {
				e.chunks = append(e.chunks, chunk)
			}
		case <-deadline.C:
			e.log.Warn("capture tail not drained in time")
			return
		}
	}
}

func (e *Engine) stopTicker() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

func (e *Engine) setStatus(s Status) {
	e.status = s
	e.published.Set(s)
}

func (e *Engine) ignored(kind commandKind) {
	e.log.Debug("command ignored in current state", "command", kind.String(), "state", statusName(e.status))
}

func statusName(s Status) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}
