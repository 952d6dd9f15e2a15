// Package cache provides the two-tier search result cache: an in-process
// fast tier over a durable Store. Entries are fully regenerable; losing the
// durable tier degrades latency, never correctness.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// DefaultTTL is how long a cached result list stays valid.
const DefaultTTL = time.Hour

// Entry is one durable cache record. The JSON shape is the on-disk /
// in-redis persistence format; no cross-version compatibility is promised.
type Entry struct {
	Query           string               `json:"query"`
	NormalizedQuery string               `json:"normalized_query"`
	Results         []types.SearchResult `json:"results"`
	SourceAPI       string               `json:"source_api"`
	Timestamp       int64                `json:"timestamp"`
	ExpiresAt       int64                `json:"expires_at"`
}

func (e *Entry) expired(now time.Time) bool {
	return now.Unix() > e.ExpiresAt
}

// Config controls the cache tiers.
type Config struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Backend selects the durable tier: "memory", "file" or "redis".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir is the cache directory for the file backend.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{
		TTL:     DefaultTTL,
		Backend: "memory",
		Dir:     "cache",
	}
}

// Key derives the stable cache key for (provider, query).
func Key(provider types.ProviderID, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(string(provider) + ":" + normalized))
	return hex.EncodeToString(sum[:])
}

// ResultCache is the two-tier TTL cache keyed by (provider, normalized query).
type ResultCache struct {
	mu    sync.RWMutex
	fast  map[string]*Entry
	store Store

	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// New creates a ResultCache over the given durable store. A nil store
// means memory-only operation.
func New(store Store, ttl time.Duration, log *logger.Logger) *ResultCache {
	if store == nil {
		store = NopStore{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.L()
	}
	return &ResultCache{
		fast:   make(map[string]*Entry),
		store:  store,
		ttl:    ttl,
		logger: log.Named("cache"),
		now:    time.Now,
	}
}

// Get returns the cached results for (provider, query), or (nil, false) on
// a miss. Durable hits are promoted into the fast tier. An expired entry is
// logically absent regardless of tier.
func (c *ResultCache) Get(ctx context.Context, provider types.ProviderID, query string) ([]types.SearchResult, bool) {
	key := Key(provider, query)
	now := c.now()

	c.mu.RLock()
	entry, ok := c.fast[key]
	c.mu.RUnlock()

	if ok {
		if !entry.expired(now) {
			return entry.Results, true
		}
		c.mu.Lock()
		delete(c.fast, key)
		c.mu.Unlock()
	}

	entry, err := c.store.Load(ctx, key)
	if err != nil {
		// Unreadable or corrupted durable records are a miss, never an error.
		c.logger.Warn("durable cache record unreadable",
			zap.String("provider", string(provider)),
			zap.String("key", key),
			zap.Error(err),
		)
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if entry.expired(now) {
		_ = c.store.Delete(ctx, key)
		return nil, false
	}

	c.mu.Lock()
	c.fast[key] = entry
	c.mu.Unlock()
	return entry.Results, true
}

// Set writes the results through both tiers with expires_at = now + ttl.
func (c *ResultCache) Set(ctx context.Context, provider types.ProviderID, query string, results []types.SearchResult) {
	key := Key(provider, query)
	now := c.now()

	entry := &Entry{
		Query:           query,
		NormalizedQuery: strings.ToLower(strings.TrimSpace(query)),
		Results:         results,
		SourceAPI:       string(provider),
		Timestamp:       now.Unix(),
		ExpiresAt:       now.Add(c.ttl).Unix(),
	}

	c.mu.Lock()
	c.fast[key] = entry
	c.mu.Unlock()

	if err := c.store.Save(ctx, key, entry); err != nil {
		c.logger.Warn("durable cache write failed",
			zap.String("provider", string(provider)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
