package rulecache

import (
	"context"
	"time"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/config"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/circuitbreaker"
	"picoyplaca/pkg/metrics"
)

// Source supplies a city's active rules in evaluation order.
type Source interface {
	ActiveRules(ctx context.Context, cityID string) ([]circulation.Rule, error)
}

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"

	OriginLocal = "local"
	OriginEvent = "event"
)

// CachedSource serves rule snapshots from Store and falls back to the
// underlying Source on a miss or when the cache is unavailable. Cache
// failures never fail a lookup.
type CachedSource struct {
	source Source
	store  Store
	cb     *circuitbreaker.Wrapper
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(source Source, store Store, cacheCfg config.RuleCacheConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		store:  store,
		cb:     newBreaker(cbCfg),
		ttl:    cacheCfg.TTL(),
		logger: log.With("component", "rule_cache"),
	}
}

func newBreaker(cfg config.CircuitBreakerConfig) *circuitbreaker.Wrapper {
	if !cfg.Enabled {
		return nil
	}

	cbConfig := circuitbreaker.DefaultConfig(constants.RuleCacheBreakerName)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbConfig.MinRequests = cfg.MinRequests
	}
	return circuitbreaker.NewWrapper(cbConfig)
}

func (s *CachedSource) ActiveRules(ctx context.Context, cityID string) ([]circulation.Rule, error) {
	entry, err := guard(ctx, s.cb, func() (Entry, error) {
		return s.store.Get(ctx, cityID)
	})
	cacheUsable := err == nil
	switch {
	case err != nil:
		metrics.IncRuleCache(resultError)
		s.logger.WarnwCtx(ctx, "Rule cache read failed, using repository", "city_id", cityID, "error", err)
	case entry.Found:
		metrics.IncRuleCache(resultHit)
		return entry.Rules, nil
	default:
		metrics.IncRuleCache(resultMiss)
	}

	rules, err := s.source.ActiveRules(ctx, cityID)
	if err != nil {
		return nil, err
	}

	// without a generation from the read there is nothing to guard the fill with
	if !cacheUsable {
		return rules, nil
	}

	stored, err := guard(ctx, s.cb, func() (bool, error) {
		return s.store.Set(ctx, cityID, entry.Generation, rules, s.ttl)
	})
	switch {
	case err != nil:
		s.logger.WarnwCtx(ctx, "Rule cache fill failed", "city_id", cityID, "error", err)
	case !stored:
		s.logger.DebugwCtx(ctx, "Rule cache fill skipped, invalidated during fetch", "city_id", cityID)
	}

	return rules, nil
}

// Invalidate drops the snapshots of the given cities.
func (s *CachedSource) Invalidate(ctx context.Context, origin string, cityIDs ...string) error {
	if len(cityIDs) == 0 {
		return nil
	}
	_, err := guard(ctx, s.cb, func() (struct{}, error) {
		return struct{}{}, s.store.Delete(ctx, cityIDs...)
	})
	if err != nil {
		return err
	}
	for range cityIDs {
		metrics.IncRuleCacheInvalidation(origin)
	}
	return nil
}

func guard[T any](ctx context.Context, cb *circuitbreaker.Wrapper, fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}
	return circuitbreaker.Do(ctx, cb, fn)
}
