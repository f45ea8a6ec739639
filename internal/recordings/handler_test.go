package recordings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/metrics"
	"github.com/rx3lixir/voicebank/internal/scripts"
	"github.com/rx3lixir/voicebank/internal/sessions"
	"github.com/rx3lixir/voicebank/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	deletes int
	failPut error
}

func newMemFiles() *memFiles {
	return &memFiles{objects: make(map[string][]byte)}
}

func (m *memFiles) UploadRecording(ctx context.Context, id uuid.UUID, r io.Reader, size int64, format string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.failPut != nil {
		return "", m.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	name := objectName(id, format, time.Now().UTC())
	m.objects[name] = data
	return name, nil
}

func (m *memFiles) DeleteRecording(ctx context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.objects, objectName)
	return nil
}

func (m *memFiles) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + objectName, nil
}

func (m *memFiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type failingDB struct{ *MemoryStore }

func (failingDB) CreateRecording(context.Context, *Recording) error {
	return errors.New("connection reset")
}

type capturePublisher struct {
	mu     sync.Mutex
	stored []domain.StoredRecording
}

func (p *capturePublisher) PublishStored(rec domain.StoredRecording) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, rec)
}

type harness struct {
	router      http.Handler
	db          *MemoryStore
	files       *memFiles
	sessions    *sessions.MemoryStore
	publisher   *capturePublisher
	contributor uuid.UUID
}

func newHarness(t *testing.T, db DBStore, maxUpload int64) *harness {
	t.Helper()

	scriptStore := scripts.NewMemoryStore(
		domain.Script{ID: "s2", Text: "two", DurationCategory: "2_minutes", LanguageID: "en"},
		domain.Script{ID: "s5", Text: "five", DurationCategory: "5_minutes", LanguageID: "en"},
	)
	m := metrics.New()
	scriptSvc := scripts.NewService(scriptStore, 8, time.Minute, m)
	sessionStore := sessions.NewMemoryStore()
	sessionSvc := sessions.NewService(sessionStore, scriptSvc, 30*time.Minute, m)

	mem := NewMemoryStore()
	if db == nil {
		db = mem
	}

	h := &harness{
		db:          mem,
		files:       newMemFiles(),
		sessions:    sessionStore,
		publisher:   &capturePublisher{},
		contributor: uuid.New(),
	}

	handler := NewHandler(db, h.files, sessionSvc, scriptSvc, duration.Default(), h.publisher, m,
		Options{MaxUploadBytes: maxUpload}, logger.Discard())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithContributorID(r.Context(), h.contributor)))
		})
	})
	r.Route("/api", handler.RegisterRoutes)
	h.router = r
	return h
}

func (h *harness) session(t *testing.T, scriptID string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	rec := &sessions.Record{
		ID:            uuid.New(),
		ScriptID:      scriptID,
		ContributorID: h.contributor,
		ExpiresAt:     now.Add(expiresIn),
		CreatedAt:     now,
	}
	require.NoError(t, h.sessions.CreateSession(context.Background(), rec))
	return rec.ID.String()
}

func (h *harness) upload(t *testing.T, fields map[string]string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("audio", "recording.wav")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/recording", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func fields(sessionID string, data []byte, overrides ...string) map[string]string {
	f := map[string]string{
		"sessionId":       sessionID,
		"durationSeconds": "60",
		"format":          "wav",
		"fileSizeBytes":   strconv.Itoa(len(data)),
		"sampleRate":      "16000",
		"channels":        "1",
		"bitDepth":        "16",
		"idempotencyKey":  uuid.NewString(),
		"checksum":        domain.Checksum(data),
	}
	for i := 0; i+1 < len(overrides); i += 2 {
		f[overrides[i]] = overrides[i+1]
	}
	return f
}

func errorKey(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var p apierror.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.ErrorKey
}

func TestUpload_Stored(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	sid := h.session(t, "s5", time.Minute)
	data := bytes.Repeat([]byte{1, 2}, 500)

	rec := h.upload(t, fields(sid, data), data)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var stored domain.StoredRecording
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, domain.RecordingStatusStored, stored.Status)
	assert.Equal(t, "s5", stored.ScriptID)
	assert.Equal(t, sid, stored.SessionID)
	assert.Equal(t, int64(len(data)), stored.FileSizeBytes)
	assert.Contains(t, stored.URL, "https://storage.test/recordings/")
	assert.True(t, strings.HasSuffix(stored.URL, stored.ID+".wav"))

	assert.Equal(t, 1, h.files.count())
	require.Len(t, h.publisher.stored, 1)
	assert.Equal(t, stored.ID, h.publisher.stored[0].ID)
}

func TestUpload_IdempotencyKeyHeader(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	sid := h.session(t, "s5", time.Minute)
	data := []byte("first take")
	f := fields(sid, data)
	delete(f, "idempotencyKey")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range f {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("audio", "recording.wav")
	require.NoError(t, err)
	_, _ = fw.Write(data)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/recording", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Idempotency-Key", "header-key")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	dup, err := h.db.FindDuplicate(context.Background(), "header-key", "", "")
	require.NoError(t, err)
	assert.Equal(t, "s5", dup.ScriptID)
}

func TestUpload_Duplicates(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	sid := h.session(t, "s5", time.Minute)
	data := []byte("the same take")
	f := fields(sid, data)

	first := h.upload(t, f, data)
	require.Equal(t, http.StatusCreated, first.Code)
	var original domain.StoredRecording
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &original))

	t.Run("same idempotency key", func(t *testing.T) {
		rec := h.upload(t, f, data)
		require.Equal(t, http.StatusOK, rec.Code)

		var again domain.StoredRecording
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
		assert.Equal(t, original.ID, again.ID)
	})

	t.Run("same script and checksum", func(t *testing.T) {
		rec := h.upload(t, fields(sid, data), data)
		require.Equal(t, http.StatusOK, rec.Code)

		var again domain.StoredRecording
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
		assert.Equal(t, original.ID, again.ID)
	})

	assert.Equal(t, 1, h.files.count())
	assert.Len(t, h.publisher.stored, 1)
}

func TestUpload_SessionErrors(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	data := []byte("take")

	t.Run("unknown session", func(t *testing.T) {
		rec := h.upload(t, fields(uuid.NewString(), data), data)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, apierror.KeySessionExpired, errorKey(t, rec))
	})

	t.Run("expired session", func(t *testing.T) {
		sid := h.session(t, "s5", -time.Second)
		rec := h.upload(t, fields(sid, data), data)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, apierror.KeySessionExpired, errorKey(t, rec))
	})

	t.Run("script mismatch", func(t *testing.T) {
		sid := h.session(t, "s5", time.Minute)
		rec := h.upload(t, fields(sid, data, "scriptId", "s2"), data)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierror.KeySessionInvalid, errorKey(t, rec))
	})

	t.Run("script removed", func(t *testing.T) {
		sid := h.session(t, "gone", time.Minute)
		rec := h.upload(t, fields(sid, data), data)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierror.KeySessionInvalid, errorKey(t, rec))
	})

	assert.Zero(t, h.files.count())
}

func TestUpload_Rejections(t *testing.T) {
	h := newHarness(t, nil, 1024)
	sid := h.session(t, "s2", time.Minute)
	small := []byte("take")
	big := bytes.Repeat([]byte{0}, 2048)

	tests := []struct {
		name   string
		fields map[string]string
		data   []byte
		status int
		key    string
	}{
		{"over size limit", fields(sid, big), big, http.StatusRequestEntityTooLarge, apierror.KeyFileTooLarge},
		{"over tier duration", fields(sid, small, "durationSeconds", "121"), small, http.StatusBadRequest, apierror.KeyInvalidDuration},
		{"size mismatch", fields(sid, small, "fileSizeBytes", "99"), small, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"checksum mismatch", fields(sid, small, "checksum", domain.Checksum([]byte("other"))), small, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"bad format", fields(sid, small, "format", "flac"), small, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"bad session id", fields("abc", small), small, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"non numeric duration", fields(sid, small, "durationSeconds", "long"), small, http.StatusBadRequest, apierror.KeyInvalidRequest},
		{"zero duration", fields(sid, small, "durationSeconds", "0"), small, http.StatusBadRequest, apierror.KeyRecordingTooShort},
		{"empty audio", fields(sid, nil, "fileSizeBytes", "1"), nil, http.StatusBadRequest, apierror.KeyInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.upload(t, tt.fields, tt.data)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.key, errorKey(t, rec))
		})
	}

	assert.Zero(t, h.files.count())
}

func TestUpload_BodyOverLimit(t *testing.T) {
	h := newHarness(t, nil, 16)
	sid := h.session(t, "s2", time.Minute)
	data := bytes.Repeat([]byte{0}, 2<<20)

	rec := h.upload(t, fields(sid, data), data)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apierror.KeyFileTooLarge, errorKey(t, rec))
}

func TestUpload_DBFailureRemovesObject(t *testing.T) {
	h := newHarness(t, failingDB{NewMemoryStore()}, 1<<20)
	sid := h.session(t, "s5", time.Minute)
	data := []byte("take")

	rec := h.upload(t, fields(sid, data), data)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, h.files.uploads)
	assert.Equal(t, 1, h.files.deletes)
	assert.Zero(t, h.files.count())
	assert.Empty(t, h.publisher.stored)
}

func TestUpload_StorageFailure(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	h.files.failPut = errors.New("bucket unavailable")
	sid := h.session(t, "s5", time.Minute)
	data := []byte("take")

	rec := h.upload(t, fields(sid, data), data)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apierror.KeyServerUnavailable, errorKey(t, rec))
}

func TestGetRecording(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	sid := h.session(t, "s5", time.Minute)
	data := []byte("take")

	created := h.upload(t, fields(sid, data), data)
	require.Equal(t, http.StatusCreated, created.Code)
	var stored domain.StoredRecording
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &stored))

	get := func(id string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recording/"+id, nil))
		return rec
	}

	rec := get(stored.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.StoredRecording
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stored.ID, got.ID)
	assert.NotEmpty(t, got.URL)

	rec = get(uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierror.KeyRecordingNotFound, errorKey(t, rec))

	rec = get("nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObjectName(t *testing.T) {
	id := uuid.MustParse("6f1c2a4e-9d3b-4c1a-8e2f-0b7d5a3c9e11")
	at := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "recordings/2026/03/07/6f1c2a4e-9d3b-4c1a-8e2f-0b7d5a3c9e11.wav", objectName(id, "wav", at))
}
