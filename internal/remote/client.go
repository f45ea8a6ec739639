// Package remote is the HTTP client for the recording service contract:
// script issue, recording-session issue and recording upload.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rx3lixir/voicebank/internal/domain"
)

const (
	scriptPath    = "/api/script"
	sessionPath   = "/api/recording-session"
	recordingPath = "/api/recording"

	IdempotencyHeader = "Idempotency-Key"
)

// TokenSource looks up the bearer token for the current contributor.
// An error means the caller is not authenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	http   *resty.Client
	tokens TokenSource
	log    *slog.Logger
}

func New(baseURL string, tokens TokenSource, timeout time.Duration, log *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		tokens: tokens,
		log:    log.With("component", "remote_client"),
	}
}

// request returns an authenticated request or an unauthenticated *Error
// without touching the network
func (c *Client) request(ctx context.Context, op string) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, &Error{Op: op, Kind: KindUnauthenticated}
	}
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return nil, &Error{Op: op, Kind: KindUnauthenticated, Cause: err}
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token), nil
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return transportError(op, err)
	}
	if resp.IsError() {
		c.log.Debug("remote call rejected",
			"op", op,
			"status", resp.StatusCode(),
			"duration_ms", resp.Time().Milliseconds(),
		)
		kind := KindHTTP
		if resp.StatusCode() == http.StatusUnauthorized {
			kind = KindUnauthenticated
		}
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode(), Body: resp.Body()}
	}
	return nil
}

// GetScript fetches a prompt script for the tier, e.g. "5_minutes"
func (c *Client) GetScript(ctx context.Context, tier string) (*domain.Script, error) {
	const op = "get script"

	req, err := c.request(ctx, op)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetQueryParam("duration", tier).
		SetResult(&domain.Script{}).
		Get(scriptPath)
	if err = c.check(op, resp, err); err != nil {
		return nil, err
	}

	script, ok := resp.Result().(*domain.Script)
	if !ok || script.ID == "" {
		return nil, &Error{Op: op, Kind: KindHTTP, Status: resp.StatusCode(), Body: resp.Body(),
			Cause: fmt.Errorf("response has no script id")}
	}

	c.log.Debug("script fetched", "script_id", script.ID, "tier", tier)
	return script, nil
}

// CreateSession opens a recording session for the script
func (c *Client) CreateSession(ctx context.Context, scriptID string) (*domain.RecordingSession, error) {
	const op = "create recording session"

	req, err := c.request(ctx, op)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetBody(domain.CreateSessionRequest{ScriptID: scriptID}).
		SetResult(&domain.RecordingSession{}).
		Post(sessionPath)
	if err = c.check(op, resp, err); err != nil {
		return nil, err
	}

	session, ok := resp.Result().(*domain.RecordingSession)
	if !ok || session.SessionID == "" {
		return nil, &Error{Op: op, Kind: KindHTTP, Status: resp.StatusCode(), Body: resp.Body(),
			Cause: fmt.Errorf("response has no session id")}
	}

	c.log.Debug("recording session opened",
		"session_id", session.SessionID,
		"script_id", session.ScriptID,
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// SubmitRecording uploads the audio as multipart form data alongside its metadata
func (c *Client) SubmitRecording(
	ctx context.Context,
	meta domain.UploadMetadata,
	data []byte,
) (*domain.StoredRecording, error) {
	const op = "submit recording"

	req, err := c.request(ctx, op)
	if err != nil {
		return nil, err
	}

	filename := "recording." + meta.Format

	resp, err := req.
		SetHeader(IdempotencyHeader, meta.IdempotencyKey).
		SetFormData(metadataForm(meta)).
		SetFileReader("audio", filename, bytes.NewReader(data)).
		SetResult(&domain.StoredRecording{}).
		Post(recordingPath)
	if err = c.check(op, resp, err); err != nil {
		return nil, err
	}

	stored, ok := resp.Result().(*domain.StoredRecording)
	if !ok || stored.ID == "" {
		return nil, &Error{Op: op, Kind: KindHTTP, Status: resp.StatusCode(), Body: resp.Body(),
			Cause: fmt.Errorf("response has no recording id")}
	}

	c.log.Debug("recording stored",
		"recording_id", stored.ID,
		"session_id", meta.SessionID,
		"size_bytes", meta.FileSizeBytes,
	)
	return stored, nil
}

func metadataForm(meta domain.UploadMetadata) map[string]string {
	return map[string]string{
		"sessionId":       meta.SessionID,
		"durationSeconds": strconv.Itoa(meta.DurationSeconds),
		"format":          meta.Format,
		"fileSizeBytes":   strconv.FormatInt(meta.FileSizeBytes, 10),
		"sampleRate":      strconv.Itoa(meta.SampleRate),
		"channels":        strconv.Itoa(meta.Channels),
		"bitDepth":        strconv.Itoa(meta.BitDepth),
		"idempotencyKey":  meta.IdempotencyKey,
		"checksum":        meta.Checksum,
	}
}
