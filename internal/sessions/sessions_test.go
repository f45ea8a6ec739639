package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/metrics"
	"github.com/rx3lixir/voicebank/internal/scripts"
	"github.com/rx3lixir/voicebank/pkg/httputil"
	"github.com/rx3lixir/voicebank/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, now time.Time) *Service {
	t.Helper()
	lookup := scripts.NewMemoryStore(domain.Script{ID: "s5", DurationCategory: "5_minutes"})
	svc := NewService(NewMemoryStore(), lookupFunc(lookup.GetByID), 30*time.Minute, metrics.New())
	svc.now = func() time.Time { return now }
	return svc
}

type lookupFunc func(ctx context.Context, id string) (*domain.Script, error)

func (f lookupFunc) Get(ctx context.Context, id string) (*domain.Script, error) { return f(ctx, id) }

func TestService_IssueAndValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, now)
	contributor := uuid.New()

	rec, err := svc.Issue(context.Background(), contributor, "s5")
	require.NoError(t, err)
	assert.Equal(t, "s5", rec.ScriptID)
	assert.Equal(t, contributor, rec.ContributorID)
	assert.Equal(t, now.Add(30*time.Minute), rec.ExpiresAt)

	got, err := svc.Validate(context.Background(), rec.ID.String(), "s5")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = svc.Validate(context.Background(), rec.ID.String(), "s2")
	assert.ErrorIs(t, err, ErrMismatch)

	svc.now = func() time.Time { return now.Add(30 * time.Minute) }
	_, err = svc.Validate(context.Background(), rec.ID.String(), "s5")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestService_ValidateUnknown(t *testing.T) {
	svc := newService(t, time.Now())

	_, err := svc.Validate(context.Background(), "not-a-uuid", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Validate(context.Background(), uuid.NewString(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_IssueUnknownScript(t *testing.T) {
	svc := newService(t, time.Now())

	_, err := svc.Issue(context.Background(), uuid.New(), "missing")
	assert.ErrorIs(t, err, scripts.ErrNotFound)
}

func TestHandleCreateSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHandler(newService(t, now), logger.Discard())
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/recording-session", bytes.NewBufferString(body))
		req = req.WithContext(auth.WithContributorID(req.Context(), uuid.New()))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("issued", func(t *testing.T) {
		rec := post(`{"scriptId":"s5"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var s domain.RecordingSession
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, "s5", s.ScriptID)
		assert.NotEmpty(t, s.SessionID)
		assert.True(t, s.ExpiresAt.Equal(now.Add(30*time.Minute)))
	})

	tests := []struct {
		name   string
		body   string
		status int
		key    string
	}{
		{"empty body", ``, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"missing script", `{}`, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"unknown field", `{"scriptId":"s5","extra":1}`, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"unknown script", `{"scriptId":"nope"}`, http.StatusNotFound, apierror.KeyScriptNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var p apierror.Payload
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.key, p.ErrorKey)
		})
	}
}

func TestHandleCreateSession_StoreDown(t *testing.T) {
	lookup := lookupFunc(func(context.Context, string) (*domain.Script, error) {
		return nil, errors.New("connection refused")
	})
	h := NewHandler(NewService(NewMemoryStore(), lookup, time.Minute, metrics.New()), logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"scriptId":"s5"}`))
	rec := httptest.NewRecorder()
	httputil.Handler(h.HandleCreateSession, logger.Discard())(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
