// Package upload delivers a finished take to the recording service. A
// rejected recording session is renewed once and the submit retried once,
// so a captured take is not lost to an expired session.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/observe"
	"github.com/rx3lixir/voicebank/internal/recorder"
	"github.com/rx3lixir/voicebank/internal/remote"
)

const (
	defaultProgressInterval = 250 * time.Millisecond
	progressCeiling         = 95
)

var errNoArtifact = errors.New("no recording to upload")

// Submitter sends the audio and its metadata
type Submitter interface {
	SubmitRecording(ctx context.Context, meta domain.UploadMetadata, data []byte) (*domain.StoredRecording, error)
}

// SessionRenewer obtains a replacement recording session for the same
// script and becomes its owner
type SessionRenewer interface {
	RenewSession(ctx context.Context) (domain.RecordingSession, error)
}

// Request is one upload: the take, the session it is filed under and the
// tier it was recorded for
type Request struct {
	Artifact *recorder.Artifact
	Session  domain.RecordingSession
	Option   duration.Option
}

type Options struct {
	ProgressInterval time.Duration
	Translator       *apierror.Translator
}

type Coordinator struct {
	submitter        Submitter
	renewer          SessionRenewer
	translator       *apierror.Translator
	progressInterval time.Duration
	log              *slog.Logger

	state *observe.Cell[State]

	mu       sync.Mutex
	cancel   context.CancelFunc
	last     Request
	keyFor   *recorder.Artifact
	key      string
	checksum string
	wg       sync.WaitGroup

	// renewed is set once keyFor has used its single session renewal
	renewed bool
}

func NewCoordinator(s Submitter, r SessionRenewer, opts Options, log *slog.Logger) *Coordinator {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	if opts.Translator == nil {
		opts.Translator = apierror.NewTranslator(nil)
	}
	return &Coordinator{
		submitter:        s,
		renewer:          r,
		translator:       opts.Translator,
		progressInterval: opts.ProgressInterval,
		log:              log.With("component", "upload_coordinator"),
		state:            observe.NewCell[State](Idle{}),
	}
}

// State returns the current upload state
func (c *Coordinator) State() State {
	return c.state.Get()
}

// Subscribe streams state changes starting with the current state
func (c *Coordinator) Subscribe(buf int) (<-chan State, func()) {
	return c.state.Subscribe(buf)
}

// Upload starts submitting req and returns immediately. An upload already
// in progress is left alone.
func (c *Coordinator) Upload(ctx context.Context, req Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.state.Get().(Uploading); busy {
		c.log.Warn("upload ignored: another upload is in progress")
		return
	}

	if req.Artifact == nil {
		detail := c.translator.TranslateKey(apierror.KeyInvalidRequest, nil)
		c.state.Set(Failed{Message: detail.Title, Detail: detail, Err: errNoArtifact})
		return
	}

	if c.keyFor != req.Artifact {
		c.keyFor = req.Artifact
		c.key = uuid.NewString()
		c.checksum = domain.Checksum(req.Artifact.Data)
		c.renewed = false
	}
	c.last = req

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	gen := c.state.Set(Uploading{Progress: 0})

	key, checksum := c.key, c.checksum
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, gen, req, key, checksum)
	}()
}

// Retry repeats the last upload after a retryable failure, reusing the same
// idempotency key and any renewed session
func (c *Coordinator) Retry(ctx context.Context) bool {
	failed, ok := c.state.Get().(Failed)
	if !ok || !failed.Retryable {
		return false
	}
	c.mu.Lock()
	req := c.last
	c.mu.Unlock()

	c.Upload(ctx, req)
	return true
}

// Reset discards any in-flight result and returns to Idle
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.keyFor = nil
	c.key = ""
	c.checksum = ""
	c.renewed = false
	c.last = Request{}
	c.state.Set(Idle{})
}

// Close resets and waits for the background upload to return
func (c *Coordinator) Close() {
	c.Reset()
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context, gen uint64, req Request, key, checksum string) {
	a := req.Artifact
	log := c.log.With("idempotency_key", key, "script_id", req.Session.ScriptID)

	if a.DurationSeconds < 1 {
		detail := c.translator.TranslateKey(apierror.KeyRecordingTooShort, nil, "record_longer_take")
		c.finish(gen, Failed{
			Message: detail.Title,
			Detail:  detail,
			Err:     fmt.Errorf("artifact lasts %d seconds", a.DurationSeconds),
		})
		log.Warn("upload rejected locally: recording too short", "duration_seconds", a.DurationSeconds)
		return
	}

	if limit := req.Option.MaxFileSizeBytes; limit > 0 && a.Size() > limit {
		detail := c.translator.TranslateKey(apierror.KeyFileTooLarge,
			map[string]any{"maxBytes": limit, "maxSeconds": req.Option.MaxDurationSeconds()},
			"record_shorter_take",
		)
		c.finish(gen, Failed{
			Message: detail.Title,
			Detail:  detail,
			Err:     fmt.Errorf("artifact is %d bytes, limit %d", a.Size(), limit),
		})
		log.Warn("upload rejected locally: artifact too large", "size_bytes", a.Size(), "max_bytes", limit)
		return
	}

	progressCtx, stopProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		c.advanceProgress(progressCtx, gen)
	}()

	stored, err := c.submitWithRenewal(ctx, gen, req, key, checksum, log)

	stopProgress()
	<-progressDone

	if err != nil {
		c.finish(gen, c.failure(err))
		return
	}

	if c.finish(gen, Succeeded{Recording: *stored}) {
		log.Info("recording uploaded", "recording_id", stored.ID, "size_bytes", a.Size())
	}
}

func (c *Coordinator) submitWithRenewal(
	ctx context.Context,
	gen uint64,
	req Request,
	key, checksum string,
	log *slog.Logger,
) (*domain.StoredRecording, error) {
	meta := BuildMetadata(req.Artifact, req.Session.SessionID, key, checksum)

	stored, err := c.submitter.SubmitRecording(ctx, meta, req.Artifact.Data)
	if err == nil {
		return stored, nil
	}

	re, ok := remote.AsError(err)
	if !ok || !re.SessionInvalid() {
		return nil, err
	}

	// One renewal per take, however many times the upload is retried
	c.mu.Lock()
	spent := c.keyFor != req.Artifact || c.renewed
	c.mu.Unlock()
	if spent {
		log.Warn("recording session rejected after renewal", "session_id", meta.SessionID)
		return nil, err
	}

	log.Info("recording session rejected, renewing", "session_id", meta.SessionID, "status", re.Status)

	session, rerr := c.renewer.RenewSession(ctx)
	if rerr != nil {
		return nil, fmt.Errorf("failed to renew recording session: %w", rerr)
	}

	c.mu.Lock()
	if c.keyFor == req.Artifact {
		c.renewed = true
	}
	if c.last.Artifact == req.Artifact {
		c.last.Session = session
	}
	c.mu.Unlock()

	meta = BuildMetadata(req.Artifact, session.SessionID, key, checksum)
	stored, err = c.submitter.SubmitRecording(ctx, meta, req.Artifact.Data)
	if err != nil {
		if re, ok := remote.AsError(err); ok && re.SessionInvalid() {
			log.Warn("renewed recording session rejected as well", "session_id", session.SessionID)
		}
		return nil, err
	}
	return stored, nil
}

// failure classifies err. Only network, timeout and 5xx failures are
// retryable; a session rejected after renewal is terminal.
func (c *Coordinator) failure(err error) Failed {
	re, ok := remote.AsError(err)
	if !ok {
		detail := c.translator.TranslateKey(apierror.KeyInternal, nil)
		return Failed{Message: detail.Title, Detail: detail, Err: err}
	}

	detail := re.Detail(c.translator)
	retryable := re.Transient()
	if retryable && len(detail.Suggestions) == 0 {
		detail.Suggestions = c.translator.TranslateKey(apierror.KeyNetwork, nil, "retry").Suggestions
	}
	return Failed{Message: detail.Title, Retryable: retryable, Detail: detail, Err: err}
}

func (c *Coordinator) finish(gen uint64, s State) bool {
	ok := c.state.SetIf(gen, s)
	if f, failed := s.(Failed); ok && failed {
		c.log.Warn("upload failed", "error", f.Err, "error_key", f.Detail.Key, "retryable", f.Retryable)
	}
	return ok
}

// advanceProgress moves the bar toward the ceiling in shrinking steps
// until ctx ends
func (c *Coordinator) advanceProgress(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.state.Update(gen, func(s State) (State, bool) {
				u, ok := s.(Uploading)
				if !ok || u.Progress >= progressCeiling {
					return s, false
				}
				step := (progressCeiling - u.Progress) / 10
				if step < 1 {
					step = 1
				}
				return Uploading{Progress: u.Progress + step}, true
			})
		}
	}
}
