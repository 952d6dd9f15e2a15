// Package retrieval wires the full search pipeline: query optimization,
// cached and rate-limited provider fan-out, merge, and ranking.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/pkg/redis"
	"github.com/searchlab/retrieval/internal/retrieval/cache"
	"github.com/searchlab/retrieval/internal/retrieval/judge"
	"github.com/searchlab/retrieval/internal/retrieval/monitor"
	"github.com/searchlab/retrieval/internal/retrieval/optimizer"
	"github.com/searchlab/retrieval/internal/retrieval/orchestrator"
	"github.com/searchlab/retrieval/internal/retrieval/rank"
	"github.com/searchlab/retrieval/internal/retrieval/ratelimit"
	"github.com/searchlab/retrieval/internal/websearch/provider"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// Config composes the settings of every pipeline stage.
type Config struct {
	Providers []types.ProviderConfig `mapstructure:"providers" yaml:"providers"`

	Optimizer    optimizer.Config    `mapstructure:"optimizer" yaml:"optimizer"`
	RateLimit    RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Cache        cache.Config        `mapstructure:"cache" yaml:"cache"`
	Redis        *redis.Config       `mapstructure:"redis" yaml:"redis"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator" yaml:"orchestrator"`
	Ranker       rank.Config         `mapstructure:"ranker" yaml:"ranker"`
	// Judge is optional; without an API key the pipeline runs on lexical
	// signals only.
	Judge judge.Config `mapstructure:"judge" yaml:"judge"`
}

// RateLimitConfig holds the default limits plus per-provider overrides.
type RateLimitConfig struct {
	Default   ratelimit.Config                      `mapstructure:"default" yaml:"default"`
	Providers map[types.ProviderID]ratelimit.Config `mapstructure:"providers" yaml:"providers"`
}

// Validate checks the engine configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("retrieval: at least one provider is required")
	}
	for i := range c.Providers {
		if err := c.Providers[i].Validate(); err != nil {
			return fmt.Errorf("retrieval: provider %q: %w", c.Providers[i].ID, err)
		}
	}
	if c.Cache.Backend == "redis" && c.Redis == nil {
		return fmt.Errorf("retrieval: redis cache backend needs a redis section")
	}
	return nil
}

// Output is the final ranked batch.
type Output struct {
	OriginalQuery string               `json:"original_query"`
	Results       []types.SearchResult `json:"results"`
	QueriesUsed   []string             `json:"queries_used"`
	TotalTasks    int                  `json:"total_searched"`
	MergedCount   int                  `json:"merged_count"`
}

// Engine is the assembled pipeline. Build it once and share it; all stages
// are safe for concurrent use.
type Engine struct {
	optimizer    *optimizer.Optimizer
	orchestrator *orchestrator.Orchestrator
	ranker       *rank.Ranker
	monitor      *monitor.Monitor
	cache        *cache.ResultCache
	limiter      *ratelimit.Limiter
	redisClient  *redis.Client
	logger       *logger.Logger
}

// New builds an Engine from configuration.
func New(cfg Config, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.L()
	}

	limits := cfg.RateLimit.Providers
	if limits == nil {
		limits = ratelimit.DefaultProviderConfigs()
	}
	e := &Engine{
		monitor: monitor.New(),
		limiter: ratelimit.New(cfg.RateLimit.Default, limits, log),
		logger:  log.Named("retrieval"),
	}

	store, redisClient, err := buildStore(cfg, log)
	if err != nil {
		return nil, err
	}
	e.redisClient = redisClient
	e.cache = cache.New(store, cfg.Cache.TTL, log)

	var relevance rank.RelevanceJudge
	var credibility rank.CredibilityJudge
	if cfg.Judge.APIKey != "" {
		j, err := judge.New(cfg.Judge, log)
		if err != nil {
			return nil, err
		}
		relevance, credibility = j, j
	}

	factory := provider.NewFactory()
	providers := make([]provider.Provider, 0, len(cfg.Providers))
	authoritative := types.ProviderSerper
	for i := range cfg.Providers {
		pcfg := &cfg.Providers[i]
		p, err := factory.Create(pcfg)
		if err != nil {
			return nil, fmt.Errorf("retrieval: provider %q: %w", pcfg.ID, err)
		}
		if pcfg.Authoritative {
			authoritative = pcfg.ID
		}
		providers = append(providers, provider.NewCachedProvider(p, e.cache, e.limiter, e.monitor, log))
	}

	e.optimizer = optimizer.New(cfg.Optimizer, log)
	e.orchestrator = orchestrator.New(cfg.Orchestrator, providers, authoritative, log)
	e.ranker = rank.New(cfg.Ranker, relevance, credibility, log)

	return e, nil
}

func buildStore(cfg Config, log *logger.Logger) (cache.Store, *redis.Client, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return nil, nil, nil
	case "file":
		store, err := cache.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieval: file cache: %w", err)
		}
		return store, nil, nil
	case "redis":
		client, err := redis.New(cfg.Redis, log)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieval: redis cache: %w", err)
		}
		ttl := cfg.Cache.TTL
		if ttl <= 0 {
			ttl = cache.DefaultTTL
		}
		return cache.NewRedisStore(client, ttl), client, nil
	default:
		return nil, nil, fmt.Errorf("retrieval: unknown cache backend %q", cfg.Cache.Backend)
	}
}

// Retrieve runs the full pipeline for one payload.
func (e *Engine) Retrieve(ctx context.Context, payload *types.QueryPayload) (*Output, error) {
	started := time.Now()

	queries := e.optimizer.Optimize(payload)
	out := &Output{QueriesUsed: queries.Queries}
	if payload != nil {
		out.OriginalQuery = payload.OriginalQuery
	}
	if len(queries.Queries) == 0 {
		return out, nil
	}

	searched, err := e.orchestrator.Search(ctx, queries.Queries, payload)
	if err != nil {
		return nil, err
	}
	out.TotalTasks = searched.TotalTasks
	out.MergedCount = len(searched.Results)

	timeSensitive := payload != nil && payload.TimeSensitivity.IsTimeSensitive
	out.Results = e.ranker.Rank(ctx, searched.Results, timeSensitive, out.OriginalQuery)

	e.logger.Info("retrieval finished",
		zap.String("query", out.OriginalQuery),
		zap.Int("queries_used", len(out.QueriesUsed)),
		zap.Int("tasks", out.TotalTasks),
		zap.Int("merged", out.MergedCount),
		zap.Int("ranked", len(out.Results)),
		zap.Duration("took", time.Since(started)),
	)
	return out, nil
}

// Stats returns the monitor's aggregate call statistics.
func (e *Engine) Stats() monitor.Stats {
	return e.monitor.Stats()
}

// ProviderStats returns one provider's call statistics.
func (e *Engine) ProviderStats(id types.ProviderID) monitor.Stats {
	return e.monitor.ProviderStats(string(id))
}

// Close releases engine resources.
func (e *Engine) Close() error {
	if e.redisClient != nil {
		return e.redisClient.Close()
	}
	return nil
}
