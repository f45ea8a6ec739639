package script

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/remote"
	"github.com/rx3lixir/voicebank/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu         sync.Mutex
	scriptErr  error
	sessionErr error
	category   string
	tiers      []string
	sessions   int
	gate       chan struct{}
}

func (f *fakeRemote) GetScript(ctx context.Context, tier string) (*domain.Script, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiers = append(f.tiers, tier)
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	category := tier
	if f.category != "" {
		category = f.category
	}
	return &domain.Script{ID: "script-1", Text: "Read this", DurationCategory: category}, nil
}

func (f *fakeRemote) CreateSession(ctx context.Context, scriptID string) (*domain.RecordingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessions++
	return &domain.RecordingSession{
		SessionID: fmt.Sprintf("session-%d", f.sessions),
		ScriptID:  scriptID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func waitFor[T State](t *testing.T, p *Provisioner) T {
	t.Helper()
	var got T
	require.Eventually(t, func() bool {
		s, ok := p.State().(T)
		got = s
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func standard(t *testing.T) duration.Option {
	opt, err := duration.Default().Lookup(duration.Standard)
	require.NoError(t, err)
	return opt
}

func TestSelect_LoadsScriptAndSession(t *testing.T) {
	fr := &fakeRemote{}
	p := NewProvisioner(fr, nil, logger.Discard())
	defer p.Close()

	p.Select(context.Background(), standard(t))
	loaded := waitFor[Loaded](t, p)

	assert.Equal(t, []string{"5_minutes"}, fr.tiers)
	assert.Equal(t, "script-1", loaded.Script.ID)
	assert.Equal(t, "script-1", loaded.Session.ScriptID)
	assert.Equal(t, 300, loaded.Option.MaxDurationSeconds())
}

func TestSelect_Unauthenticated(t *testing.T) {
	fr := &fakeRemote{scriptErr: &remote.Error{Op: "get script", Kind: remote.KindUnauthenticated}}
	p := NewProvisioner(fr, nil, logger.Discard())
	defer p.Close()

	p.Select(context.Background(), standard(t))
	failed := waitFor[Failed](t, p)

	assert.Equal(t, apierror.KeyUnauthenticated, failed.Detail.Key)
	assert.True(t, failed.Retryable)
	assert.Zero(t, fr.sessions)
}

func TestSelect_DistinctFailureMessages(t *testing.T) {
	cases := map[string]*remote.Error{
		apierror.KeyScriptNotFound:    {Kind: remote.KindHTTP, Status: http.StatusNotFound},
		apierror.KeyServerUnavailable: {Kind: remote.KindHTTP, Status: http.StatusServiceUnavailable},
		apierror.KeyNetwork:           {Kind: remote.KindNetwork},
	}
	titles := map[string]bool{}
	for key, rerr := range cases {
		t.Run(key, func(t *testing.T) {
			p := NewProvisioner(&fakeRemote{scriptErr: rerr}, nil, logger.Discard())
			defer p.Close()

			p.Select(context.Background(), standard(t))
			failed := waitFor[Failed](t, p)
			assert.Equal(t, key, failed.Detail.Key)
			titles[failed.Detail.Title] = true
		})
	}
	assert.Len(t, titles, len(cases))
}

func TestSelect_RejectsTierMismatch(t *testing.T) {
	p := NewProvisioner(&fakeRemote{category: "2_minutes"}, nil, logger.Discard())
	defer p.Close()

	p.Select(context.Background(), standard(t))
	failed := waitFor[Failed](t, p)
	assert.Equal(t, apierror.KeyInvalidDuration, failed.Detail.Key)
}

func TestRetry(t *testing.T) {
	fr := &fakeRemote{scriptErr: &remote.Error{Kind: remote.KindNetwork}}
	p := NewProvisioner(fr, nil, logger.Discard())
	defer p.Close()

	assert.ErrorIs(t, p.Retry(context.Background()), ErrNothingToRetry)

	p.Select(context.Background(), standard(t))
	waitFor[Failed](t, p)

	fr.mu.Lock()
	fr.scriptErr = nil
	fr.mu.Unlock()

	require.NoError(t, p.Retry(context.Background()))
	waitFor[Loaded](t, p)
}

func TestRenewSession(t *testing.T) {
	fr := &fakeRemote{}
	p := NewProvisioner(fr, nil, logger.Discard())
	defer p.Close()

	_, err := p.RenewSession(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)

	p.Select(context.Background(), standard(t))
	first := waitFor[Loaded](t, p)

	renewed, err := p.RenewSession(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Session.SessionID, renewed.SessionID)

	current, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, renewed.SessionID, current.Session.SessionID)
	assert.Equal(t, first.Script.ID, current.Script.ID)
}

func TestReset_DiscardsInFlightLoad(t *testing.T) {
	fr := &fakeRemote{gate: make(chan struct{})}
	p := NewProvisioner(fr, nil, logger.Discard())

	p.Select(context.Background(), standard(t))
	waitFor[Loading](t, p)

	p.Reset()
	close(fr.gate)
	p.Close()

	assert.IsType(t, Idle{}, p.State())
}
