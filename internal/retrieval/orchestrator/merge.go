package orchestrator

import (
	"sort"
	"strings"

	"github.com/searchlab/retrieval/internal/retrieval/rank"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// diversityWindow is how many consecutive positions the domain spreader
// looks back over.
const diversityWindow = 3

// mergeResults groups raw results by normalized URL, keeps the best copy
// per URL, sorts by lexical relevance to the original query, spreads
// domains, and renumbers positions 1..K. The output is deterministic for a
// given input set regardless of slice order within a URL group's sources.
func mergeResults(all [][]types.SearchResult, originalQuery string, authoritative types.ProviderID) []types.SearchResult {
	groups := make(map[string][]types.SearchResult)
	var order []string
	for _, results := range all {
		for _, res := range results {
			u := res.NormalizedURL()
			if u == "" {
				continue
			}
			if _, ok := groups[u]; !ok {
				order = append(order, u)
			}
			groups[u] = append(groups[u], res)
		}
	}

	merged := make([]types.SearchResult, 0, len(order))
	for _, u := range order {
		merged = append(merged, bestCopy(groups[u], authoritative))
	}

	auth := string(authoritative)
	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := &merged[i], &merged[j]
		si, sj := rank.TermOverlap(ri, originalQuery), rank.TermOverlap(rj, originalQuery)
		if si != sj {
			return si > sj
		}
		if ai, aj := ri.SourceAPI == auth, rj.SourceAPI == auth; ai != aj {
			return ai
		}
		if ri.Position != rj.Position {
			return ri.Position < rj.Position
		}
		return ri.NormalizedURL() < rj.NormalizedURL()
	})

	merged = applyDomainDiversity(merged, diversityWindow)

	for i := range merged {
		merged[i].Position = i + 1
	}
	return merged
}

// bestCopy picks the representative for one URL: longest snippet, then the
// authoritative provider's copy, then the lowest provider position, with a
// provider-name tie-break to stay deterministic.
func bestCopy(candidates []types.SearchResult, authoritative types.ProviderID) types.SearchResult {
	auth := string(authoritative)
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case len(c.Snippet) != len(best.Snippet):
			if len(c.Snippet) > len(best.Snippet) {
				best = c
			}
		case (c.SourceAPI == auth) != (best.SourceAPI == auth):
			if c.SourceAPI == auth {
				best = c
			}
		case c.Position != best.Position:
			if c.Position < best.Position {
				best = c
			}
		case c.SourceAPI < best.SourceAPI:
			best = c
		}
	}
	return best
}

// applyDomainDiversity reorders so one domain does not occupy consecutive
// positions: each slot takes the earliest remaining result whose domain
// appears fewest times in the last window picks. Short lists pass through.
func applyDomainDiversity(results []types.SearchResult, window int) []types.SearchResult {
	if len(results) <= window {
		return results
	}

	out := make([]types.SearchResult, 0, len(results))
	used := make([]bool, len(results))
	var recent []string

	for len(out) < len(results) {
		bestIdx := -1
		bestPenalty := window + 1
		for i, res := range results {
			if used[i] {
				continue
			}
			penalty := 0
			domain := diversityDomain(&res)
			for _, d := range recent {
				if d == domain {
					penalty++
				}
			}
			if penalty < bestPenalty {
				bestPenalty = penalty
				bestIdx = i
			}
		}

		used[bestIdx] = true
		picked := results[bestIdx]
		out = append(out, picked)
		recent = append(recent, diversityDomain(&picked))
		if len(recent) > window {
			recent = recent[1:]
		}
	}
	return out
}

func diversityDomain(res *types.SearchResult) string {
	if d := strings.ToLower(strings.TrimSpace(res.Domain)); d != "" {
		return d
	}
	return res.URL
}
