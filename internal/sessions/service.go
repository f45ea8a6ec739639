package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/metrics"
)

// ScriptLookup resolves the script a session is requested for
type ScriptLookup interface {
	Get(ctx context.Context, id string) (*domain.Script, error)
}

type Service struct {
	store   Store
	scripts ScriptLookup
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, scripts ScriptLookup, ttl time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		scripts: scripts,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}
}

// Issue creates a session bound to an existing script. The script lookup
// error is returned unwrapped so callers can match its not-found sentinel.
func (s *Service) Issue(ctx context.Context, contributorID uuid.UUID, scriptID string) (*Record, error) {
	script, err := s.scripts.Get(ctx, scriptID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &Record{
		ID:            uuid.New(),
		ScriptID:      script.ID,
		ContributorID: contributorID,
		ExpiresAt:     now.Add(s.ttl),
		CreatedAt:     now,
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return nil, err
	}

	s.metrics.SessionsIssued.Inc()
	return rec, nil
}

// Validate checks that the session exists, is live, and belongs to the script
func (s *Service) Validate(ctx context.Context, sessionID, scriptID string) (*Record, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}

	rec, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.now().Before(rec.ExpiresAt) {
		return nil, fmt.Errorf("%w: expired at %s", ErrExpired, rec.ExpiresAt.Format(time.RFC3339))
	}
	if scriptID != "" && rec.ScriptID != scriptID {
		return nil, ErrMismatch
	}

	return rec, nil
}
