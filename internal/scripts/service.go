package scripts

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/metrics"
)

// Service picks a random active script per tier. Tier listings are cached
// with a TTL so newly activated scripts show up without a restart.
type Service struct {
	store   Store
	cache   *expirable.LRU[string, []domain.Script]
	metrics *metrics.Metrics
}

func NewService(store Store, cacheSize int, cacheTTL time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   expirable.NewLRU[string, []domain.Script](cacheSize, nil, cacheTTL),
		metrics: m,
	}
}

// Pick returns a random active script of the tier
func (s *Service) Pick(ctx context.Context, tier string) (*domain.Script, error) {
	scripts, err := s.list(ctx, tier)
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("%w: tier %s", ErrNotFound, tier)
	}

	picked := scripts[rand.IntN(len(scripts))]
	s.metrics.ScriptsServed.WithLabelValues(tier).Inc()
	return &picked, nil
}

// Get looks up a script by ID, bypassing the cache
func (s *Service) Get(ctx context.Context, id string) (*domain.Script, error) {
	return s.store.GetByID(ctx, id)
}

// Invalidate drops the cached listing of a tier
func (s *Service) Invalidate(tier string) {
	s.cache.Remove(tier)
}

func (s *Service) list(ctx context.Context, tier string) ([]domain.Script, error) {
	if scripts, ok := s.cache.Get(tier); ok {
		s.metrics.ScriptCacheHits.Inc()
		return scripts, nil
	}
	s.metrics.ScriptCacheMisses.Inc()

	scripts, err := s.store.ListActive(ctx, tier)
	if err != nil {
		return nil, err
	}
	if len(scripts) > 0 {
		s.cache.Add(tier, scripts)
	}
	return scripts, nil
}
