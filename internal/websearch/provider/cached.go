package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/retrieval/cache"
	"github.com/searchlab/retrieval/internal/retrieval/monitor"
	"github.com/searchlab/retrieval/internal/retrieval/ratelimit"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// CachedProvider wraps a Provider with the result cache, the rate limiter
// and the performance monitor. A cache hit returns immediately without
// touching the limiter. A provider failure is absorbed: it is recorded and
// logged, and the caller gets an empty result set, so one provider going
// down does not fail a whole search batch.
type CachedProvider struct {
	inner   Provider
	cache   *cache.ResultCache
	limiter *ratelimit.Limiter
	monitor *monitor.Monitor
	logger  *logger.Logger
}

// NewCachedProvider wraps inner. Any of cache, limiter and monitor may be
// nil, disabling that concern.
func NewCachedProvider(inner Provider, c *cache.ResultCache, l *ratelimit.Limiter, m *monitor.Monitor, log *logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.L()
	}
	return &CachedProvider{
		inner:   inner,
		cache:   c,
		limiter: l,
		monitor: m,
		logger:  log.Named("websearch").With(zap.String("provider", string(inner.ID()))),
	}
}

// ID returns the wrapped provider's ID.
func (p *CachedProvider) ID() types.ProviderID {
	return p.inner.ID()
}

// Validate validates the wrapped provider's configuration.
func (p *CachedProvider) Validate() error {
	return p.inner.Validate()
}

// Search consults the cache, paces the call through the rate limiter, and
// runs the wrapped provider.
func (p *CachedProvider) Search(ctx context.Context, query string, payload *types.QueryPayload) ([]types.SearchResult, error) {
	var metric *monitor.Metric
	if p.monitor != nil {
		metric = p.monitor.Start(query, string(p.ID()))
	}

	if p.cache != nil {
		if results, ok := p.cache.Get(ctx, p.ID(), query); ok {
			if p.monitor != nil {
				p.monitor.RecordSuccess(metric, len(results), true)
			}
			return results, nil
		}
	}

	if p.limiter != nil {
		waited, err := p.limiter.WaitIfNeeded(ctx, p.ID())
		if err != nil {
			// Context ended while pacing; this is the caller's deadline,
			// not a provider failure.
			if p.monitor != nil {
				p.monitor.RecordError(metric, err.Error())
			}
			return nil, err
		}
		if waited > 0 {
			p.logger.Debug("rate limit wait", zap.Duration("waited", waited))
		}
	}

	results, err := p.inner.Search(ctx, query, payload)
	if err != nil {
		isRateLimit := types.IsRateLimit(err)
		if p.limiter != nil {
			p.limiter.RecordError(p.ID(), isRateLimit)
		}
		if p.monitor != nil {
			p.monitor.RecordError(metric, err.Error())
		}
		p.logger.Warn("search failed",
			zap.String("query", query),
			zap.Bool("rate_limited", isRateLimit),
			zap.Error(err),
		)
		return nil, nil
	}

	if p.limiter != nil {
		p.limiter.RecordSuccess(p.ID())
	}
	if p.monitor != nil {
		p.monitor.RecordSuccess(metric, len(results), false)
	}
	if p.cache != nil && len(results) > 0 {
		p.cache.Set(ctx, p.ID(), query, results)
	}
	return results, nil
}
