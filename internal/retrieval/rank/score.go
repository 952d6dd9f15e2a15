package rank

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

var (
	wordPattern    = regexp.MustCompile(`\w+`)
	isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	yearPattern    = regexp.MustCompile(`(\d{4})`)
)

// queryTerms extracts the lowercased query tokens longer than one character.
func queryTerms(query string) []string {
	var terms []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(w) > 1 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermOverlap scores how well a result covers the query terms: 1.5 per term
// found in the title, 1.0 per term found only in the snippet, divided by the
// term count. The value is intentionally uncapped; it can exceed 1 when many
// terms hit the title, which matters for stable sort ordering.
func TermOverlap(result *types.SearchResult, query string) float64 {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return 0
	}
	title := strings.ToLower(result.Title)
	snippet := strings.ToLower(result.Snippet)

	score := 0.0
	for _, term := range terms {
		switch {
		case strings.Contains(title, term):
			score += 1.5
		case strings.Contains(snippet, term):
			score += 1.0
		}
	}
	return score / float64(len(terms))
}

// RelevanceScore is TermOverlap clamped to [0,1], with a neutral 0.5 for a
// blank query. Used both as the lexical relevance floor and as the
// relevance component of the composite score.
func RelevanceScore(result *types.SearchResult, query string) float64 {
	if strings.TrimSpace(query) == "" {
		return 0.5
	}
	if len(queryTerms(query)) == 0 {
		return 0.5
	}
	score := TermOverlap(result, query)
	if score > 1 {
		return 1
	}
	return score
}

// positionScore maps a 1-based rank onto [0,1], best first.
func positionScore(position, maxPosition int) float64 {
	if maxPosition <= 0 {
		return 1
	}
	p := position
	if p < 1 {
		p = 1
	}
	score := 1 - float64(p-1)/float64(maxPosition)
	if score < 0 {
		return 0
	}
	return score
}

// parseDate best-effort parses a free-form published date: an ISO
// year-month-day prefix, else a bare 4-digit year mapped to January 1.
func parseDate(published string) (time.Time, bool) {
	s := strings.TrimSpace(published)
	if s == "" {
		return time.Time{}, false
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := yearPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// recencyScore maps content age onto [0,1] when the query is
// time-sensitive; otherwise, and for unparseable dates, it is neutral.
func recencyScore(result *types.SearchResult, timeSensitive bool, now time.Time) float64 {
	if !timeSensitive {
		return 0.5
	}
	published, ok := parseDate(result.PublishedDate)
	if !ok {
		return 0.5
	}
	ageDays := int(now.Sub(published).Hours() / 24)
	switch {
	case ageDays <= 0:
		return 1.0
	case ageDays <= 30:
		return 0.95
	case ageDays <= 90:
		return 0.8
	case ageDays <= 365:
		return 0.5
	default:
		return 0.2
	}
}
