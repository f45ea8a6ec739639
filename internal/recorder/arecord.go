//go:build unix

package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rx3lixir/voicebank/pkg/audio"
)

const (
	defaultArecord     = "arecord"
	defaultChunkMillis = 100
	stopGrace          = 2 * time.Second
	defaultOpenTimeout = 5 * time.Second
)

var (
	ErrNoCaptureTool  = errors.New("capture tool not found")
	ErrDeviceNotReady = errors.New("capture device did not produce audio")
)

// ArecordDevice captures raw PCM from ALSA through an arecord subprocess
type ArecordDevice struct {
	binary      string
	device      string
	openTimeout time.Duration
	log         *slog.Logger
}

// NewArecordDevice uses binary (default "arecord") and the ALSA device
// name, empty for the system default
func NewArecordDevice(binary, device string, log *slog.Logger) *ArecordDevice {
	if binary == "" {
		binary = defaultArecord
	}
	return &ArecordDevice{
		binary:      binary,
		device:      device,
		openTimeout: defaultOpenTimeout,
		log:         log.With("component", "arecord"),
	}
}

// Open returns once arecord has delivered its first audio, so a busy or
// forbidden device fails here rather than after recording has begun
func (d *ArecordDevice) Open(ctx context.Context, format audio.PCMFormat) (Stream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	sampleFormat, err := alsaSampleFormat(format.BitDepth)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(d.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCaptureTool, d.binary)
	}

	args := []string{
		"-q",
		"-t", "raw",
		"-f", sampleFormat,
		"-r", strconv.Itoa(format.SampleRate),
		"-c", strconv.Itoa(format.Channels),
	}
	if d.device != "" {
		args = append(args, "-D", d.device)
	}

	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach to capture output: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", d.binary, err)
	}

	chunkBytes := format.BytesPerSecond() * defaultChunkMillis / 1000
	chunkBytes -= chunkBytes % format.BlockAlign()
	if chunkBytes <= 0 {
		chunkBytes = format.BlockAlign()
	}

	s := &arecordStream{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		chunks:    make(chan []byte, 16),
		ready:     make(chan struct{}),
		abandoned: make(chan struct{}),
		log:       d.log,
	}
	go s.pump(chunkBytes)

	timeout := time.NewTimer(d.openTimeout)
	defer timeout.Stop()

	select {
	case <-s.ready:
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	case <-timeout.C:
		_ = s.Close()
		return nil, fmt.Errorf("%w within %s", ErrDeviceNotReady, d.openTimeout)
	}

	if !s.capturing() {
		if err := s.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceNotReady, err)
		}
		return nil, ErrDeviceNotReady
	}

	d.log.Debug("capture started", "pid", cmd.Process.Pid, "args", strings.Join(args, " "))
	return s, nil
}

type arecordStream struct {
	cmd       *exec.Cmd
	stdout    io.Reader
	stderr    *bytes.Buffer
	chunks    chan []byte
	ready     chan struct{}
	abandoned chan struct{}
	log       *slog.Logger

	mu        sync.Mutex
	err       error
	started   bool
	closing   bool
	paused    bool
	once      sync.Once
	readyOnce sync.Once
}

// capturing reports whether any audio arrived before ready was signalled
func (s *arecordStream) capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *arecordStream) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *arecordStream) Chunks() <-chan []byte { return s.chunks }

func (s *arecordStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *arecordStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.paused {
		return nil
	}
	if err := s.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("failed to suspend capture: %w", err)
	}
	s.paused = true
	return nil
}

func (s *arecordStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || !s.paused {
		return nil
	}
	if err := s.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("failed to resume capture: %w", err)
	}
	s.paused = false
	return nil
}

// Close interrupts arecord so it flushes, and kills it if it has not
// exited within the grace period
func (s *arecordStream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		paused := s.paused
		s.mu.Unlock()

		if paused {
			_ = s.cmd.Process.Signal(syscall.SIGCONT)
		}
		if sigErr := s.cmd.Process.Signal(os.Interrupt); sigErr != nil && !errors.Is(sigErr, os.ErrProcessDone) {
			err = fmt.Errorf("failed to stop capture: %w", sigErr)
			_ = s.cmd.Process.Kill()
		}

		time.AfterFunc(stopGrace, func() {
			close(s.abandoned)
			_ = s.cmd.Process.Kill()
		})
	})
	return err
}

// pump signals ready on the first audio, or once arecord has exited
// without producing any
func (s *arecordStream) pump(chunkBytes int) {
	defer close(s.chunks)
	defer s.signalReady()

	buf := make([]byte, chunkBytes)
	for {
		n, readErr := io.ReadFull(s.stdout, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			s.mu.Lock()
			s.started = true
			s.mu.Unlock()
			s.signalReady()

			select {
			case s.chunks <- chunk:
			case <-s.abandoned:
			}
		}
		if readErr != nil {
			break
		}
	}

	waitErr := s.cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return
	}
	if waitErr != nil {
		s.err = fmt.Errorf("arecord exited: %w: %s", waitErr, strings.TrimSpace(s.stderr.String()))
	}
	s.log.Warn("capture ended", "error", s.err)
}

func alsaSampleFormat(bitDepth int) (string, error) {
	switch bitDepth {
	case 8:
		return "U8", nil
	case 16:
		return "S16_LE", nil
	case 24:
		return "S24_3LE", nil
	case 32:
		return "S32_LE", nil
	default:
		return "", fmt.Errorf("%w: unsupported bit depth %d", audio.ErrInvalidPCMFormat, bitDepth)
	}
}
