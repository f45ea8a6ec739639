// Package script obtains a prompt script for the chosen tier and the
// recording session bound to it, and owns that session for its lifetime.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/observe"
	"github.com/rx3lixir/voicebank/internal/remote"
)

var (
	ErrNotLoaded       = errors.New("no script loaded")
	ErrNothingToRetry  = errors.New("nothing to retry")
	ErrStale           = errors.New("script selection changed")
	errTierMismatch    = errors.New("script duration does not match the requested tier")
	errSessionMismatch = errors.New("session issued for a different script")
)

// Remote is the part of the recording service the provisioner talks to
type Remote interface {
	GetScript(ctx context.Context, tier string) (*domain.Script, error)
	CreateSession(ctx context.Context, scriptID string) (*domain.RecordingSession, error)
}

type Provisioner struct {
	remote     Remote
	translator *apierror.Translator
	log        *slog.Logger

	state *observe.Cell[State]

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProvisioner(r Remote, t *apierror.Translator, log *slog.Logger) *Provisioner {
	if t == nil {
		t = apierror.NewTranslator(nil)
	}
	return &Provisioner{
		remote:     r,
		translator: t,
		log:        log.With("component", "script_provisioner"),
		state:      observe.NewCell[State](Idle{}),
	}
}

// State returns the current load state
func (p *Provisioner) State() State {
	return p.state.Get()
}

// Subscribe streams state changes starting with the current state
func (p *Provisioner) Subscribe(buf int) (<-chan State, func()) {
	return p.state.Subscribe(buf)
}

// Current returns the loaded script and session, if any
func (p *Provisioner) Current() (Loaded, bool) {
	loaded, ok := p.state.Get().(Loaded)
	return loaded, ok
}

// Select starts fetching a script for option and opening its session.
// It returns immediately; progress is observed through State.
func (p *Provisioner) Select(ctx context.Context, option duration.Option) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	gen := p.state.Set(Loading{Option: option})
	p.wg.Add(1)
	p.mu.Unlock()

	p.log.Debug("loading script", "tier", option.Tier())

	go func() {
		defer p.wg.Done()
		defer cancel()
		p.load(ctx, gen, option)
	}()
}

// Retry repeats the last failed selection
func (p *Provisioner) Retry(ctx context.Context) error {
	failed, ok := p.state.Get().(Failed)
	if !ok {
		return ErrNothingToRetry
	}
	p.Select(ctx, failed.Option)
	return nil
}

// RenewSession requests a fresh session for the loaded script and stores it.
// This is the only path that rewrites the session after Select.
func (p *Provisioner) RenewSession(ctx context.Context) (domain.RecordingSession, error) {
	current, gen := p.state.Snapshot()
	loaded, ok := current.(Loaded)
	if !ok {
		return domain.RecordingSession{}, ErrNotLoaded
	}

	session, err := p.openSession(ctx, loaded.Script.ID)
	if err != nil {
		return domain.RecordingSession{}, err
	}

	renewed := p.state.Update(gen, func(s State) (State, bool) {
		l, ok := s.(Loaded)
		if !ok {
			return s, false
		}
		l.Session = *session
		return l, true
	})
	if !renewed {
		return domain.RecordingSession{}, ErrStale
	}

	p.log.Info("recording session renewed",
		"script_id", loaded.Script.ID,
		"old_session_id", loaded.Session.SessionID,
		"session_id", session.SessionID,
	)
	return *session, nil
}

// Reset abandons any in-flight load and returns to Idle
func (p *Provisioner) Reset() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state.Set(Idle{})
	p.mu.Unlock()
}

// Close resets and waits for background loads to return
func (p *Provisioner) Close() {
	p.Reset()
	p.wg.Wait()
}

func (p *Provisioner) load(ctx context.Context, gen uint64, option duration.Option) {
	script, err := p.remote.GetScript(ctx, option.Tier())
	if err != nil {
		p.fail(gen, option, err)
		return
	}
	if script.DurationCategory != "" && script.DurationCategory != option.Tier() {
		p.fail(gen, option, fmt.Errorf("%w: got %q, want %q", errTierMismatch, script.DurationCategory, option.Tier()))
		return
	}

	session, err := p.openSession(ctx, script.ID)
	if err != nil {
		p.fail(gen, option, err)
		return
	}

	if p.state.SetIf(gen, Loaded{Option: option, Script: *script, Session: *session}) {
		p.log.Info("script loaded",
			"script_id", script.ID,
			"session_id", session.SessionID,
			"tier", option.Tier(),
		)
	}
}

func (p *Provisioner) openSession(ctx context.Context, scriptID string) (*domain.RecordingSession, error) {
	session, err := p.remote.CreateSession(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if session.ScriptID != "" && session.ScriptID != scriptID {
		return nil, fmt.Errorf("%w: got %q, want %q", errSessionMismatch, session.ScriptID, scriptID)
	}
	if session.ScriptID == "" {
		session.ScriptID = scriptID
	}
	return session, nil
}

func (p *Provisioner) fail(gen uint64, option duration.Option, err error) {
	detail := p.describe(err)
	if !p.state.SetIf(gen, Failed{Option: option, Detail: detail, Retryable: true, Err: err}) {
		return
	}
	p.log.Warn("script load failed", "tier", option.Tier(), "error", err, "error_key", detail.Key)
}

func (p *Provisioner) describe(err error) apierror.Detail {
	if re, ok := remote.AsError(err); ok {
		return re.Detail(p.translator)
	}
	switch {
	case errors.Is(err, errTierMismatch):
		return p.translator.TranslateKey(apierror.KeyInvalidDuration, nil, "choose_other_tier")
	case errors.Is(err, errSessionMismatch):
		return p.translator.TranslateKey(apierror.KeySessionInvalid, nil, "retry")
	default:
		return p.translator.TranslateKey(apierror.KeyInternal, nil, "retry")
	}
}
