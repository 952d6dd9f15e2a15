// Package rank filters and scores merged search results, consulting
// external relevance and credibility judges, and returns the top N.
package rank

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// Defaults for the ranking stage.
const (
	DefaultTopN           = 20
	DefaultMinCredibility = 0.2
	DefaultMinRelevance   = 0.2

	// Judge batch ceilings keep prompt sizes bounded.
	RelevanceBatchSize = 25
	DomainBatchSize    = 50

	snippetMaxChars = 250
	titleMaxChars   = 120
	maxURLLength    = 2048
)

// Weights combine the four ranking signals. They are renormalized to sum
// to 1, so scaling all of them by the same constant changes nothing.
type Weights struct {
	Position  float64 `mapstructure:"position" yaml:"position"`
	Domain    float64 `mapstructure:"domain" yaml:"domain"`
	Recency   float64 `mapstructure:"recency" yaml:"recency"`
	Relevance float64 `mapstructure:"relevance" yaml:"relevance"`
}

// DefaultWeights returns the reference signal weights.
func DefaultWeights() Weights {
	return Weights{Position: 0.30, Domain: 0.35, Recency: 0.15, Relevance: 0.20}
}

func (w Weights) normalized() Weights {
	total := w.Position + w.Domain + w.Recency + w.Relevance
	if total <= 0 {
		return DefaultWeights().normalized()
	}
	return Weights{
		Position:  w.Position / total,
		Domain:    w.Domain / total,
		Recency:   w.Recency / total,
		Relevance: w.Relevance / total,
	}
}

// Config tunes the ranking stage.
type Config struct {
	TopN    int     `mapstructure:"top_n" yaml:"top_n"`
	Weights Weights `mapstructure:"weights" yaml:"weights"`
	// MinCredibility and MinRelevance are the drop floors for the two
	// judge-backed filters. Zero means the default; set a negative value
	// to disable a floor.
	MinCredibility float64 `mapstructure:"min_credibility" yaml:"min_credibility"`
	MinRelevance   float64 `mapstructure:"min_relevance" yaml:"min_relevance"`
	// MinPerProvider, when positive, guarantees each provider that many
	// slots in the final list when it has candidates left, by swapping out
	// the lowest-scoring included items.
	MinPerProvider int `mapstructure:"min_per_provider" yaml:"min_per_provider"`
}

// DefaultConfig returns the default ranking settings.
func DefaultConfig() Config {
	return Config{
		TopN:           DefaultTopN,
		Weights:        DefaultWeights(),
		MinCredibility: DefaultMinCredibility,
		MinRelevance:   DefaultMinRelevance,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	zero := Weights{}
	if c.Weights == zero {
		c.Weights = d.Weights
	}
	if c.MinCredibility == 0 {
		c.MinCredibility = d.MinCredibility
	}
	if c.MinRelevance == 0 {
		c.MinRelevance = d.MinRelevance
	}
	return c
}

// Ranker runs the filter-and-score pipeline. Either judge may be nil, in
// which case its step is skipped entirely.
type Ranker struct {
	cfg         Config
	relevance   RelevanceJudge
	credibility CredibilityJudge
	logger      *logger.Logger
	now         func() time.Time
}

// New creates a Ranker.
func New(cfg Config, relevance RelevanceJudge, credibility CredibilityJudge, log *logger.Logger) *Ranker {
	if log == nil {
		log = logger.L()
	}
	return &Ranker{
		cfg:         cfg.withDefaults(),
		relevance:   relevance,
		credibility: credibility,
		logger:      log.Named("ranker"),
		now:         time.Now,
	}
}

type scored struct {
	result types.SearchResult
	score  float64
}

// Rank filters the merged list and returns the top N by composite score,
// with final positions renumbered 1..N.
func (r *Ranker) Rank(ctx context.Context, results []types.SearchResult, timeSensitive bool, originalQuery string) []types.SearchResult {
	if len(results) == 0 {
		return nil
	}

	filtered := r.basicFilter(results)
	if len(filtered) == 0 {
		return nil
	}

	filtered = r.judgeRelevance(ctx, filtered, originalQuery)
	if len(filtered) == 0 {
		return nil
	}

	filtered = r.lexicalFloor(filtered, originalQuery)
	if len(filtered) == 0 {
		return nil
	}

	credibility := r.judgeCredibility(ctx, filtered)
	filtered = r.filterByCredibility(filtered, credibility)
	if len(filtered) == 0 {
		return nil
	}

	ranked := r.score(filtered, credibility, timeSensitive, originalQuery)
	sortByScore(ranked)

	top := ranked
	if len(top) > r.cfg.TopN {
		top = top[:r.cfg.TopN]
	}

	if r.cfg.MinPerProvider > 0 && len(top) == r.cfg.TopN {
		top = r.topUpProviders(ranked, top)
		sortByScore(top)
		if len(top) > r.cfg.TopN {
			top = top[:r.cfg.TopN]
		}
	}

	out := make([]types.SearchResult, len(top))
	for i, s := range top {
		out[i] = s.result
		out[i].Position = i + 1
	}
	return out
}

// basicFilter keeps only well-formed https URLs of sane length.
func (r *Ranker) basicFilter(results []types.SearchResult) []types.SearchResult {
	out := results[:0:0]
	for _, res := range results {
		u := res.NormalizedURL()
		if u == "" || len(u) > maxURLLength {
			continue
		}
		if !strings.HasPrefix(u, "https://") {
			continue
		}
		out = append(out, res)
	}
	return out
}

// judgeRelevance keeps the results the external judge marks relevant,
// batching to respect the judge's prompt budget. A failed call keeps the
// whole batch (fail open).
func (r *Ranker) judgeRelevance(ctx context.Context, results []types.SearchResult, query string) []types.SearchResult {
	if r.relevance == nil || strings.TrimSpace(query) == "" {
		return results
	}

	var out []types.SearchResult
	for start := 0; start < len(results); start += RelevanceBatchSize {
		end := start + RelevanceBatchSize
		if end > len(results) {
			end = len(results)
		}
		batch := results[start:end]

		candidates := make([]Candidate, len(batch))
		for i, res := range batch {
			candidates[i] = Candidate{
				Title:   truncate(res.Title, titleMaxChars),
				Snippet: truncate(res.Snippet, snippetMaxChars),
			}
		}

		indices, err := r.relevance.Relevant(ctx, query, candidates)
		if err != nil {
			r.logger.Warn("relevance judge failed, keeping batch",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			out = append(out, batch...)
			continue
		}

		relevant := make(map[int]struct{}, len(indices))
		for _, idx := range indices {
			relevant[idx] = struct{}{}
		}
		for i, res := range batch {
			if _, ok := relevant[i+1]; ok {
				out = append(out, res)
			}
		}
	}
	return out
}

// lexicalFloor drops items whose term-overlap score is below the floor,
// a safety net independent of the judge.
func (r *Ranker) lexicalFloor(results []types.SearchResult, query string) []types.SearchResult {
	if strings.TrimSpace(query) == "" || r.cfg.MinRelevance <= 0 {
		return results
	}
	out := results[:0:0]
	for _, res := range results {
		if RelevanceScore(&res, query) >= r.cfg.MinRelevance {
			out = append(out, res)
		}
	}
	return out
}

// judgeCredibility fetches 0-1 credibility per distinct domain. A failed
// call returns an empty map: nothing gets dropped, no score is asserted.
func (r *Ranker) judgeCredibility(ctx context.Context, results []types.SearchResult) map[string]float64 {
	out := make(map[string]float64)
	if r.credibility == nil {
		return out
	}

	var domains []string
	seen := make(map[string]struct{})
	for _, res := range results {
		d := res.DomainKey()
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}

	for start := 0; start < len(domains); start += DomainBatchSize {
		end := start + DomainBatchSize
		if end > len(domains) {
			end = len(domains)
		}
		scores, err := r.credibility.ScoreDomains(ctx, domains[start:end])
		if err != nil {
			r.logger.Warn("credibility judge failed, treating as no-op",
				zap.Int("domains", end-start),
				zap.Error(err),
			)
			continue
		}
		for domain, raw := range scores {
			d := strings.ToLower(strings.TrimSpace(domain))
			if d == "" {
				continue
			}
			score := raw / 10.0
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
			out[d] = score
		}
	}
	return out
}

// filterByCredibility drops results whose domain scored below the minimum.
// Unknown domains are kept (neutral).
func (r *Ranker) filterByCredibility(results []types.SearchResult, credibility map[string]float64) []types.SearchResult {
	out := results[:0:0]
	for _, res := range results {
		d := res.DomainKey()
		if d != "" {
			if score, ok := credibility[d]; ok && score < r.cfg.MinCredibility {
				continue
			}
		}
		out = append(out, res)
	}
	return out
}

// score computes the composite for each result over the current filtered
// set. Every component lies in [0,1], so the weighted sum does too.
func (r *Ranker) score(results []types.SearchResult, credibility map[string]float64, timeSensitive bool, query string) []scored {
	w := r.cfg.Weights.normalized()
	now := r.now()

	maxPos := 0
	for _, res := range results {
		if res.Position > maxPos {
			maxPos = res.Position
		}
	}

	out := make([]scored, len(results))
	for i, res := range results {
		domainScore := 0.5
		if s, ok := credibility[res.DomainKey()]; ok {
			domainScore = s
		}
		composite := w.Position*positionScore(res.Position, maxPos) +
			w.Domain*domainScore +
			w.Recency*recencyScore(&res, timeSensitive, now) +
			w.Relevance*RelevanceScore(&res, query)
		out[i] = scored{result: res, score: composite}
	}
	return out
}

// sortByScore orders by descending composite with a normalized-URL
// tie-break so the final order is deterministic.
func sortByScore(items []scored) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].result.NormalizedURL() < items[j].result.NormalizedURL()
	})
}

// topUpProviders enforces the per-provider minimum by swapping each
// under-represented provider's best excluded candidates for the currently
// lowest-scoring included items. Providers are visited in ascending
// alphabetical order so the pass is deterministic.
func (r *Ranker) topUpProviders(ranked, top []scored) []scored {
	inTop := make(map[string]struct{}, len(top))
	counts := make(map[string]int)
	for _, s := range top {
		inTop[s.result.NormalizedURL()] = struct{}{}
		counts[s.result.SourceAPI]++
	}

	providers := make([]string, 0, len(counts))
	seen := make(map[string]struct{})
	for _, s := range ranked {
		p := s.result.SourceAPI
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			providers = append(providers, p)
		}
	}
	sort.Strings(providers)

	for _, provider := range providers {
		needed := r.cfg.MinPerProvider - counts[provider]
		if needed <= 0 {
			continue
		}

		// Best excluded candidates from this provider; ranked is already
		// sorted by descending score.
		var candidates []scored
		for _, s := range ranked {
			if s.result.SourceAPI != provider {
				continue
			}
			if _, ok := inTop[s.result.NormalizedURL()]; ok {
				continue
			}
			candidates = append(candidates, s)
			if len(candidates) == needed {
				break
			}
		}
		if len(candidates) == 0 {
			continue
		}

		for _, candidate := range candidates {
			// Evict the worst included item from a different provider.
			evictIdx := -1
			for i := len(top) - 1; i >= 0; i-- {
				if top[i].result.SourceAPI != provider {
					evictIdx = i
					break
				}
			}
			if evictIdx < 0 {
				break
			}
			evicted := top[evictIdx]
			delete(inTop, evicted.result.NormalizedURL())
			counts[evicted.result.SourceAPI]--

			top[evictIdx] = candidate
			inTop[candidate.result.NormalizedURL()] = struct{}{}
			counts[provider]++
			sortByScore(top)
		}
	}
	return top
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
