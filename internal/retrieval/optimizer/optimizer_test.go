package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

func newTestOptimizer() *Optimizer {
	return New(Config{}, nil)
}

func TestOptimize_EmptyPayload(t *testing.T) {
	set := newTestOptimizer().Optimize(&types.QueryPayload{})
	assert.Empty(t, set.Queries)
	assert.Empty(t, set.Duplicates)
}

func TestOptimize_OriginalQueryFirst(t *testing.T) {
	set := newTestOptimizer().Optimize(&types.QueryPayload{
		OriginalQuery: "  When was the Eiffel Tower built?  ",
		Subqueries:    []string{"Eiffel Tower construction history"},
	})

	require.NotEmpty(t, set.Queries)
	assert.Equal(t, "When was the Eiffel Tower built?", set.Queries[0])
	assert.Equal(t, []string{
		"When was the Eiffel Tower built?",
		"Eiffel Tower construction history",
	}, set.Queries)
}

func TestOptimize_SubqueryCapAndBlanks(t *testing.T) {
	set := newTestOptimizer().Optimize(&types.QueryPayload{
		OriginalQuery: "rust ownership model",
		Subqueries: []string{
			"what is borrowing in rust",
			"   ",
			"rust lifetimes explained",
			"rust borrow checker errors", // fourth non-blank is beyond the cap window
		},
	})

	// Only the first three subqueries are considered, blanks included.
	assert.Equal(t, []string{
		"rust ownership model",
		"what is borrowing in rust",
		"rust lifetimes explained",
	}, set.Queries)
}

func TestOptimize_NearDuplicatesFolded(t *testing.T) {
	set := newTestOptimizer().Optimize(&types.QueryPayload{
		OriginalQuery: "Eiffel Tower construction history",
		Subqueries: []string{
			// Normalize-equal, substring, and superstring of the selected query.
			"eiffel tower construction history",
			"Eiffel Tower construction",
			"the Eiffel Tower construction history 1889",
		},
	})

	assert.Equal(t, []string{"Eiffel Tower construction history"}, set.Queries)
	assert.Equal(t, "Eiffel Tower construction history", set.Duplicates["eiffel tower construction history"])
	assert.Equal(t, "Eiffel Tower construction history", set.Duplicates["eiffel tower construction"])
	assert.Equal(t, "Eiffel Tower construction history", set.Duplicates["the eiffel tower construction history 1889"])
}

func TestOptimize_ShortStringsNotContainmentFolded(t *testing.T) {
	// Containment only counts against selected queries longer than the
	// threshold; "go maps" is too short to fold "go" into.
	set := newTestOptimizer().Optimize(&types.QueryPayload{
		OriginalQuery: "go maps",
		Subqueries:    []string{"go"},
	})
	assert.Equal(t, []string{"go maps", "go"}, set.Queries)
}

func TestOptimize_VariantsByDiversity(t *testing.T) {
	set := newTestOptimizer().Optimize(&types.QueryPayload{
		OriginalQuery: "python asyncio tutorial",
		SearchVariants: []string{
			"python asyncio tutorial guide",  // high overlap
			"event loop coroutines explained", // no overlap, most diverse
			"python asyncio tutorial",         // exact duplicate, excluded
		},
	})

	require.Len(t, set.Queries, 3)
	assert.Equal(t, "python asyncio tutorial", set.Queries[0])
	// Most diverse variant is appended first.
	assert.Equal(t, "event loop coroutines explained", set.Queries[1])
	assert.Equal(t, "python asyncio tutorial guide", set.Queries[2])
	assert.Contains(t, set.Duplicates, "python asyncio tutorial")
}

func TestOptimize_TotalCap(t *testing.T) {
	set := newTestOptimizer().Optimize(&types.QueryPayload{
		OriginalQuery: "q0 alpha",
		Subqueries:    []string{"q1 bravo", "q2 charlie", "q3 delta"},
		SearchVariants: []string{
			"q4 echo", "q5 foxtrot", "q6 golf", "q7 hotel", "q8 india",
		},
	})

	assert.LessOrEqual(t, len(set.Queries), MaxQueries)
	assert.Len(t, set.Queries, 7)

	// All distinct after normalization.
	seen := map[string]bool{}
	for _, q := range set.Queries {
		n := Normalize(q)
		assert.False(t, seen[n], "duplicate query %q", q)
		seen[n] = true
	}
}

func TestOptimize_CustomThreshold(t *testing.T) {
	// With a tiny threshold, even short containments fold.
	o := New(Config{NearDupThreshold: 2}, nil)
	set := o.Optimize(&types.QueryPayload{
		OriginalQuery: "go maps",
		Subqueries:    []string{"go"},
	})
	assert.Equal(t, []string{"go maps"}, set.Queries)
}
