package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitorStats(t *testing.T) {
	m := New()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	metric := m.Start("go testing", "serper")
	clock = clock.Add(100 * time.Millisecond)
	m.RecordSuccess(metric, 10, false)

	metric = m.Start("go testing", "serper")
	clock = clock.Add(20 * time.Millisecond)
	m.RecordSuccess(metric, 10, true)

	metric = m.Start("go testing", "tavily")
	clock = clock.Add(300 * time.Millisecond)
	m.RecordError(metric, "HTTP 500")

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalSearches)
	assert.Equal(t, 2, stats.SuccessfulSearches)
	assert.Equal(t, 1, stats.FailedSearches)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, 20, stats.TotalResults)
	assert.Equal(t, float64(10), stats.AvgResultsPerCall)
	assert.Equal(t, 420*time.Millisecond, stats.TotalDuration)
	assert.Equal(t, 140*time.Millisecond, stats.AvgDuration)
	assert.Equal(t, 20*time.Millisecond, stats.MinDuration)
	assert.Equal(t, 300*time.Millisecond, stats.MaxDuration)

	serper := m.ProviderStats("serper")
	assert.Equal(t, 2, serper.TotalSearches)
	assert.Equal(t, 0, serper.FailedSearches)

	assert.Zero(t, m.ProviderStats("unknown"))
}

func TestMonitorHistoryBound(t *testing.T) {
	m := New()
	for i := 0; i < maxHistory+50; i++ {
		m.RecordSuccess(m.Start("q", "serper"), 1, false)
	}
	assert.Equal(t, maxHistory, m.Stats().TotalSearches)
}
