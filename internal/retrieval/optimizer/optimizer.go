// Package optimizer reduces a query payload's candidate strings to a small,
// diverse execution set.
package optimizer

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// Caps on the execution set composition.
const (
	MaxQueries    = 7
	MaxSubqueries = 3
	MaxVariants   = 3
)

// DefaultNearDupThreshold is the minimum normalized length at which
// substring containment counts as a near-duplicate. The containment rule is
// a heuristic, kept deliberately loose.
const DefaultNearDupThreshold = 10

// Config tunes query selection.
type Config struct {
	// NearDupThreshold overrides DefaultNearDupThreshold when positive.
	NearDupThreshold int `mapstructure:"near_dup_threshold" yaml:"near_dup_threshold"`
}

// QuerySet is the ordered execution set plus a map from discarded
// near-duplicate normalized strings to the canonical query they were folded
// into. The map exists for traceability only.
type QuerySet struct {
	Queries    []string
	Duplicates map[string]string
}

// Normalize lowercases and trims a query string; normalized forms are the
// identity used for dedup throughout the pipeline.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Optimizer selects the execution set from a payload.
type Optimizer struct {
	threshold int
	logger    *logger.Logger
}

// New creates an Optimizer.
func New(cfg Config, log *logger.Logger) *Optimizer {
	threshold := cfg.NearDupThreshold
	if threshold <= 0 {
		threshold = DefaultNearDupThreshold
	}
	if log == nil {
		log = logger.L()
	}
	return &Optimizer{
		threshold: threshold,
		logger:    log.Named("optimizer"),
	}
}

// Optimize builds the execution set: the original query first, then up to
// MaxSubqueries subqueries that are not near-duplicates, then up to
// MaxVariants search variants chosen by descending diversity, stopping at
// MaxQueries total. An empty payload yields an empty set.
func (o *Optimizer) Optimize(payload *types.QueryPayload) QuerySet {
	set := QuerySet{Duplicates: make(map[string]string)}
	if payload == nil {
		return set
	}
	seen := make(map[string]struct{})

	if q := strings.TrimSpace(payload.OriginalQuery); q != "" {
		set.Queries = append(set.Queries, q)
		seen[Normalize(q)] = struct{}{}
	}

	subqueries := payload.Subqueries
	if len(subqueries) > MaxSubqueries {
		subqueries = subqueries[:MaxSubqueries]
	}
	for _, sq := range subqueries {
		q := strings.TrimSpace(sq)
		if q == "" {
			continue
		}
		n := Normalize(q)
		if o.isDuplicate(n, seen) {
			if _, mapped := set.Duplicates[n]; !mapped && len(set.Queries) > 0 {
				set.Duplicates[n] = set.Queries[0]
			}
			continue
		}
		set.Queries = append(set.Queries, q)
		seen[n] = struct{}{}
	}

	type scoredVariant struct {
		score   float64
		variant string
	}
	var scored []scoredVariant
	for _, sv := range payload.SearchVariants {
		v := strings.TrimSpace(sv)
		if v == "" {
			continue
		}
		n := Normalize(v)
		if _, dup := seen[n]; dup {
			if _, mapped := set.Duplicates[n]; !mapped && len(set.Queries) > 0 {
				set.Duplicates[n] = set.Queries[0]
			}
			continue
		}
		if score := diversityScore(n, seen); score >= 0 {
			scored = append(scored, scoredVariant{score: score, variant: v})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > MaxVariants {
		scored = scored[:MaxVariants]
	}
	for _, sv := range scored {
		if len(set.Queries) >= MaxQueries {
			break
		}
		set.Queries = append(set.Queries, sv.variant)
		seen[Normalize(sv.variant)] = struct{}{}
	}

	o.logger.Debug("optimized queries",
		zap.Int("selected", len(set.Queries)),
		zap.Int("folded", len(set.Duplicates)),
	)
	return set
}

// isDuplicate reports whether n equals, contains, or is contained by an
// already-selected normalized query longer than the threshold.
func (o *Optimizer) isDuplicate(n string, seen map[string]struct{}) bool {
	if _, ok := seen[n]; ok {
		return true
	}
	for existing := range seen {
		if len(existing) > o.threshold &&
			(strings.Contains(existing, n) || strings.Contains(n, existing)) {
			return true
		}
	}
	return false
}

// diversityScore is 1 minus the smallest token-overlap fraction against any
// selected query; higher means more different. Already-seen strings score -1.
func diversityScore(n string, seen map[string]struct{}) float64 {
	if n == "" {
		return -1
	}
	if _, ok := seen[n]; ok {
		return -1
	}
	words := tokenSet(n)
	if len(words) == 0 {
		return 0
	}

	minOverlap := 1.0
	for s := range seen {
		sw := tokenSet(s)
		shared := 0
		for w := range words {
			if _, ok := sw[w]; ok {
				shared++
			}
		}
		overlap := float64(shared) / float64(len(words))
		if overlap < minOverlap {
			minOverlap = overlap
		}
	}
	return 1.0 - minOverlap
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}
