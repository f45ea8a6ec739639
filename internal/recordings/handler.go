package recordings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/metrics"
	"github.com/rx3lixir/voicebank/internal/remote"
	"github.com/rx3lixir/voicebank/internal/sessions"
	"github.com/rx3lixir/voicebank/pkg/httputil"
)

const (
	formOverhead     = 1 << 20
	formMemory       = 8 << 20
	defaultURLExpiry = time.Hour

	minDurationSeconds = 1
)

// SessionValidator checks the session an upload claims
type SessionValidator interface {
	Validate(ctx context.Context, sessionID, scriptID string) (*sessions.Record, error)
}

// ScriptLookup resolves the script a session is bound to
type ScriptLookup interface {
	Get(ctx context.Context, id string) (*domain.Script, error)
}

// Publisher announces stored recordings to live listeners
type Publisher interface {
	PublishStored(rec domain.StoredRecording)
}

type Options struct {
	MaxUploadBytes int64
	URLExpiry      time.Duration
}

type Handler struct {
	dbStore   DBStore
	fileStore FileStore
	sessions  SessionValidator
	scripts   ScriptLookup
	catalog   *duration.Catalog
	publisher Publisher
	metrics   *metrics.Metrics
	opts      Options
	log       *slog.Logger
}

func NewHandler(
	dbStore DBStore,
	fileStore FileStore,
	sessions SessionValidator,
	scripts ScriptLookup,
	catalog *duration.Catalog,
	publisher Publisher,
	m *metrics.Metrics,
	opts Options,
	log *slog.Logger,
) *Handler {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = defaultURLExpiry
	}
	return &Handler{
		dbStore:   dbStore,
		fileStore: fileStore,
		sessions:  sessions,
		scripts:   scripts,
		catalog:   catalog,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		log:       log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/recording", httputil.Handler(h.HandleUpload, h.log))
	r.Get("/recording/{recordingID}", httputil.Handler(h.HandleGetRecording, h.log))
}

// HandleUpload serves POST /api/recording and counts every outcome
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) error {
	outcome, err := h.upload(w, r)
	if err != nil {
		outcome = metrics.OutcomeFailed
		var httpErr *httputil.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status < http.StatusInternalServerError {
			outcome = metrics.OutcomeRejected
		}
	}
	h.metrics.Uploads.WithLabelValues(outcome).Inc()
	return err
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) (string, error) {
	contributorID := auth.GetContributorID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", httputil.TooLarge("Recording is too large", map[string]any{
				"maxBytes": h.opts.MaxUploadBytes,
			})
		}
		return "", httputil.BadRequest(apierror.KeyInvalidRequest, "Invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	form, err := parseForm(r)
	if err != nil {
		return "", err
	}
	if key := r.Header.Get(remote.IdempotencyHeader); key != "" && form.IdempotencyKey == "" {
		form.IdempotencyKey = key
	}

	if form.DurationSeconds < minDurationSeconds {
		return "", httputil.BadRequest(apierror.KeyRecordingTooShort, "Recording is shorter than one second", map[string]any{
			"minSeconds": minDurationSeconds,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()

	session, err := h.sessions.Validate(ctx, form.SessionID, form.ScriptID)
	switch {
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, sessions.ErrExpired):
		return "", httputil.Forbidden(apierror.KeySessionExpired, "Recording session has expired")
	case errors.Is(err, sessions.ErrMismatch):
		return "", httputil.BadRequest(apierror.KeySessionInvalid, "Session was issued for another script")
	case err != nil:
		return "", httputil.Unavailable(err)
	}
	if session.ContributorID != uuid.Nil && session.ContributorID != contributorID {
		return "", httputil.BadRequest(apierror.KeySessionInvalid, "Session belongs to another contributor")
	}

	script, err := h.scripts.Get(ctx, session.ScriptID)
	if err != nil {
		return "", httputil.BadRequest(apierror.KeySessionInvalid, "Session script is no longer available")
	}
	option, err := h.catalog.ParseTier(script.DurationCategory)
	if err != nil {
		return "", httputil.Internal(fmt.Errorf("script %s has unknown tier: %w", script.ID, err))
	}

	if form.DurationSeconds > option.MaxDurationSeconds() {
		return "", httputil.BadRequest(apierror.KeyInvalidDuration, "Recording exceeds the tier duration", map[string]any{
			"maxSeconds": option.MaxDurationSeconds(),
		})
	}

	maxBytes := h.opts.MaxUploadBytes
	if option.MaxFileSizeBytes > 0 && option.MaxFileSizeBytes < maxBytes {
		maxBytes = option.MaxFileSizeBytes
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		return "", httputil.BadRequest(apierror.KeyInvalidRequest, "Audio file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", httputil.Internal(fmt.Errorf("failed to read audio file: %w", err))
	}

	size := int64(len(data))
	switch {
	case size == 0:
		return "", httputil.BadRequest(apierror.KeyInvalidRequest, "Empty audio file")
	case size > maxBytes:
		return "", httputil.TooLarge("Recording is too large for this duration", map[string]any{
			"maxBytes":   maxBytes,
			"maxSeconds": option.MaxDurationSeconds(),
		})
	case size != form.FileSizeBytes:
		return "", httputil.BadRequest(apierror.KeyInvalidRequest, "fileSizeBytes does not match the audio file")
	}

	checksum := domain.Checksum(data)
	if form.Checksum != "" && form.Checksum != checksum {
		return "", httputil.BadRequest(apierror.KeyInvalidRequest, "checksum does not match the audio file")
	}

	if dup, err := h.dbStore.FindDuplicate(ctx, form.IdempotencyKey, session.ScriptID, checksum); err == nil {
		return metrics.OutcomeDuplicate, h.respondDuplicate(ctx, w, dup)
	} else if !errors.Is(err, ErrNotFound) {
		return "", httputil.Unavailable(err)
	}

	rec := &Recording{
		ID:              uuid.New(),
		ScriptID:        session.ScriptID,
		SessionID:       session.ID,
		ContributorID:   contributorID,
		DurationSeconds: form.DurationSeconds,
		Format:          form.Format,
		FileSizeBytes:   size,
		SampleRate:      form.SampleRate,
		Channels:        form.Channels,
		BitDepth:        form.BitDepth,
		IdempotencyKey:  form.IdempotencyKey,
		Checksum:        checksum,
		CreatedAt:       time.Now().UTC(),
	}

	h.log.Debug(
		"Uploading recording",
		"recording_id", rec.ID,
		"session_id", rec.SessionID,
		"script_id", rec.ScriptID,
		"size_bytes", size,
		"format", rec.Format,
	)

	objectKey, err := h.fileStore.UploadRecording(ctx, rec.ID, bytes.NewReader(data), size, rec.Format)
	if err != nil {
		return "", httputil.Unavailable(err)
	}
	rec.ObjectKey = objectKey

	if err := h.dbStore.CreateRecording(ctx, rec); err != nil {
		// Try to clean up the object if the insert fails
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cleanupCancel()
		if delErr := h.fileStore.DeleteRecording(cleanupCtx, objectKey); delErr != nil {
			h.log.Warn("Failed to clean up orphaned object", "s3_key", objectKey, "error", delErr)
		}

		if errors.Is(err, ErrDuplicate) {
			dup, findErr := h.dbStore.FindDuplicate(ctx, rec.IdempotencyKey, rec.ScriptID, rec.Checksum)
			if findErr != nil {
				return "", httputil.Unavailable(findErr)
			}
			return metrics.OutcomeDuplicate, h.respondDuplicate(ctx, w, dup)
		}
		return "", httputil.Unavailable(err)
	}

	h.metrics.UploadBytes.Add(float64(size))

	stored := rec.Stored(h.presign(ctx, rec))

	h.log.Info(
		"Recording stored",
		"recording_id", rec.ID,
		"script_id", rec.ScriptID,
		"s3_key", objectKey,
	)

	if h.publisher != nil {
		h.publisher.PublishStored(stored)
	}

	return metrics.OutcomeStored, httputil.RespondJSON(w, http.StatusCreated, stored)
}

func (h *Handler) respondDuplicate(ctx context.Context, w http.ResponseWriter, dup *Recording) error {
	h.log.Info("Duplicate upload answered with stored recording", "recording_id", dup.ID)
	return httputil.RespondJSON(w, http.StatusOK, dup.Stored(h.presign(ctx, dup)))
}

// HandleGetRecording serves GET /api/recording/{recordingID}
func (h *Handler) HandleGetRecording(w http.ResponseWriter, r *http.Request) error {
	id, err := httputil.ParseUUID(r, "recordingID")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second*3)
	defer cancel()

	rec, err := h.dbStore.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return httputil.NotFound(apierror.KeyRecordingNotFound, "Recording not found")
		}
		return httputil.Unavailable(err)
	}

	return httputil.RespondJSON(w, http.StatusOK, rec.Stored(h.presign(ctx, rec)))
}

// presign returns a playback URL, or "" when signing fails
func (h *Handler) presign(ctx context.Context, rec *Recording) string {
	url, err := h.fileStore.GetPresignedURL(ctx, rec.ObjectKey, h.opts.URLExpiry)
	if err != nil {
		h.log.Warn("Failed to generate presigned URL", "recording_id", rec.ID, "error", err)
		return ""
	}
	return url
}

func parseForm(r *http.Request) (*uploadForm, error) {
	form := &uploadForm{
		SessionID:      r.FormValue("sessionId"),
		ScriptID:       r.FormValue("scriptId"),
		Format:         r.FormValue("format"),
		IdempotencyKey: r.FormValue("idempotencyKey"),
		Checksum:       r.FormValue("checksum"),
	}

	ints := []struct {
		field  string
		target *int
	}{
		{"durationSeconds", &form.DurationSeconds},
		{"sampleRate", &form.SampleRate},
		{"channels", &form.Channels},
		{"bitDepth", &form.BitDepth},
	}
	for _, f := range ints {
		raw := r.FormValue(f.field)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, httputil.BadRequest(apierror.KeyInvalidRequest, "Invalid "+f.field)
		}
		*f.target = v
	}

	if raw := r.FormValue("fileSizeBytes"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, httputil.BadRequest(apierror.KeyInvalidRequest, "Invalid fileSizeBytes")
		}
		form.FileSizeBytes = v
	}

	if err := httputil.Validate(form); err != nil {
		return nil, err
	}
	return form, nil
}
