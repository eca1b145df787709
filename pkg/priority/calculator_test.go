package priority

import (
	"testing"
	"time"

	"github.com/seraphhq/seraph/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.PriorityQueueConfig {
	cfg := config.Defaults().PriorityQueue
	cfg.CriticalKeywords = []string{"out of memory", "panic"}
	cfg.HighPriorityKeywords = []string{"connection refused"}
	cfg.MediumPriorityKeywords = []string{"retry"}
	cfg.Services = []config.ServiceConfig{
		{Name: "checkout", Criticality: "critical", UserCount: 200000},
		{Name: "batch-job", Criticality: "low", UserCount: 10},
	}
	cfg.BusinessHours = config.BusinessHours{
		Start:    "09:00",
		End:      "17:00",
		Timezone: "UTC",
		PeakSubWindows: []config.PeakWindow{
			{Start: "12:00", End: "13:00"},
		},
	}
	return cfg
}

func TestCalculator_KeywordDominatesWhenCritical(t *testing.T) {
	calc, err := NewCalculator(testConfig(), nil)
	require.NoError(t, err)

	weekday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC) // Wednesday
	class, score := calc.Score("service checkout: out of memory", "", Metadata{}, weekday)

	assert.Equal(t, Critical, class)
	assert.Greater(t, score, 0.8)
}

func TestCalculator_ServiceCriticalityAndUserCount(t *testing.T) {
	calc, err := NewCalculator(testConfig(), nil)
	require.NoError(t, err)

	weekday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	_, highImpact := calc.Score("checkout latency elevated", "", Metadata{}, weekday)
	_, lowImpact := calc.Score("batch-job latency elevated", "", Metadata{}, weekday)

	assert.Greater(t, highImpact, lowImpact)
}

func TestCalculator_WeekendLowersTimeScore(t *testing.T) {
	calc, err := NewCalculator(testConfig(), nil)
	require.NoError(t, err)

	saturday := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	weekday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)

	_, weekendScore := calc.Score("retry attempted", "", Metadata{}, saturday)
	_, weekdayScore := calc.Score("retry attempted", "", Metadata{}, weekday)

	assert.Less(t, weekendScore, weekdayScore)
}

func TestCalculator_PeakWindowClampedToOne(t *testing.T) {
	calc, err := NewCalculator(testConfig(), nil)
	require.NoError(t, err)

	noon := time.Date(2026, 7, 29, 12, 30, 0, 0, time.UTC)
	offPeak := time.Date(2026, 7, 29, 15, 0, 0, 0, time.UTC)

	_, peakScore := calc.Score("unrelated log line", "", Metadata{}, noon)
	_, offPeakScore := calc.Score("unrelated log line", "", Metadata{}, offPeak)

	assert.GreaterOrEqual(t, peakScore, offPeakScore)
}

func TestCalculator_HistoryFactorCappedAtOne(t *testing.T) {
	cfg := testConfig()
	calc, err := NewCalculator(cfg, func(string) float64 { return 5.0 })
	require.NoError(t, err)

	weekday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	_, score := calc.Score("unrelated log line", "", Metadata{}, weekday)
	assert.LessOrEqual(t, score, 1.0)
}

func TestCalculator_RejectsUnsafeKeywordAtConstruction(t *testing.T) {
	cfg := testConfig()
	cfg.CriticalKeywords = []string{"(a+)+"}
	_, err := NewCalculator(cfg, nil)
	require.Error(t, err)
}
