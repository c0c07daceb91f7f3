package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gitlab.com/acastano/gridvault/models"
)

func dailyValues(values []float64) []models.ValuePoint {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := make([]models.ValuePoint, 0, len(values))
	for i, value := range values {
		series = append(series, models.ValuePoint{Time: start.AddDate(0, 0, i), Value: value})
	}
	return series
}

func newAnalyticsFixture() (*VaultAnalyticsService, *storeMock) {
	store := newStoreMock()
	marketData := &marketDataMock{histories: map[string][]models.PricePoint{
		"BTC/USDT": hourlyPrices([]float64{50000, 50500, 51000}),
		"ETH/USDT": hourlyPrices([]float64{3000, 3030, 2990}),
	}}
	return NewVaultAnalyticsService(store, marketData), store
}

func TestMaxDrawdownScenario(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	maxDrawdown := analytics.MaxDrawdown([]float64{100, 110, 90, 95, 105})
	assert.InDelta(t, 20.0/110.0, maxDrawdown, 1e-9)
}

func TestMaxDrawdownFlatAndRisingSeriesIsZero(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	assert.Equal(t, 0.0, analytics.MaxDrawdown([]float64{100, 100, 100}))
	assert.Equal(t, 0.0, analytics.MaxDrawdown([]float64{100, 105, 111}))
	assert.Equal(t, 0.0, analytics.MaxDrawdown(nil))
}

func TestDrawdownEventsRecordsDeepDeclineWithRecovery(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	series := dailyValues([]float64{100, 110, 90, 95, 105})
	events := analytics.DrawdownEvents(series)

	assert.Len(t, events, 1)
	event := events[0]
	assert.InDelta(t, 20.0/110.0, event.Depth, 1e-9)
	assert.Equal(t, series[1].Time.Format("2006-01-02"), event.StartDate)
	assert.Equal(t, series[2].Time.Format("2006-01-02"), event.TroughDate)
	assert.Equal(t, series[3].Time.Format("2006-01-02"), event.RecoveryDate)
	// Duration measures the decline itself, peak to trough.
	assert.InDelta(t, 1.0, event.DurationDays, 1e-9)
}

func TestDrawdownEventsIgnoresShallowDecline(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	// 7% dip: tracked (≥5%) but never recorded (<10%).
	events := analytics.DrawdownEvents(dailyValues([]float64{100, 93, 99, 104}))
	assert.Empty(t, events)
}

func TestDrawdownEventsWaitsForRecovery(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	// Deep decline with no 5% bounce off the trough: still open, not recorded.
	events := analytics.DrawdownEvents(dailyValues([]float64{100, 80, 78, 79}))
	assert.Empty(t, events)
}

func TestSharpeRatioEdgeCases(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	assert.Equal(t, 0.0, analytics.SharpeRatio(nil))
	assert.Equal(t, 0.0, analytics.SharpeRatio([]float64{0.01}))
	assert.Equal(t, 0.0, analytics.SharpeRatio([]float64{0.01, 0.01, 0.01}))
}

func TestSharpeRatioAnnualizes(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	returns := []float64{0.01, -0.005, 0.02, 0.0, 0.015}
	sharpe := analytics.SharpeRatio(returns)
	assert.Greater(t, sharpe, 0.0)

	// Scaling every return leaves the ratio unchanged.
	scaled := make([]float64, len(returns))
	for i, r := range returns {
		scaled[i] = r * 3
	}
	assert.InDelta(t, sharpe, analytics.SharpeRatio(scaled), 1e-9)
}

func TestPeriodReturnUsesMostRecentReferenceAtOrBeforeCutoff(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	series := dailyValues([]float64{100, 102, 104, 106, 108, 110, 112, 114})
	now := series[len(series)-1].Time

	daily := analytics.PeriodReturn(series, now, 24*time.Hour)
	assert.InDelta(t, (114.0-112.0)/112.0, daily, 1e-9)

	weekly := analytics.PeriodReturn(series, now, 7*24*time.Hour)
	assert.InDelta(t, (114.0-100.0)/100.0, weekly, 1e-9)

	// No sample old enough: return 0.
	monthly := analytics.PeriodReturn(series, now, 30*24*time.Hour)
	assert.Equal(t, 0.0, monthly)
}

func TestWinRateCountsPositiveDays(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	assert.Equal(t, 0.0, analytics.WinRate(nil))
	assert.InDelta(t, 0.75, analytics.WinRate([]float64{0.01, 0.02, -0.01, 0.005}), 1e-9)
}

func TestBestAssetRanksByMakerRebates(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	fills := []models.Fill{
		{Pair: "APT/USDT", Size: 100, Price: 10, IsMaker: true},
		{Pair: "APT/USDT", Size: 100, Price: 10, IsMaker: true},
		{Pair: "SOL/USDT", Size: 10, Price: 100, IsMaker: true},
		{Pair: "BTC/USDT", Size: 1, Price: 50000, IsMaker: false}, // taker, ignored
	}
	assert.Equal(t, "APT/USDT", analytics.BestAsset(fills))
	assert.Equal(t, "", analytics.BestAsset(nil))
}

func TestRecordDailySnapshotUpsertsByDateAndIsIdempotent(t *testing.T) {
	analytics, store := newAnalyticsFixture()

	series := dailyValues([]float64{100, 110, 90, 95, 105})
	now := series[len(series)-1].Time

	first, err := analytics.RecordDailySnapshot(context.Background(), series, nil, now)
	assert.NoError(t, err)
	second, err := analytics.RecordDailySnapshot(context.Background(), series, nil, now)
	assert.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Len(t, store.snapshots, 1)
	assert.Len(t, store.drawdowns, 1)

	stored := store.snapshots[first.Date]
	assert.InDelta(t, 20.0/110.0, stored.MaxDrawdown, 1e-9)
	assert.Equal(t, 105.0, stored.TotalValue)
}

func TestRecordDailySnapshotWritesBenchmarkComparison(t *testing.T) {
	analytics, store := newAnalyticsFixture()

	series := dailyValues([]float64{100, 102, 104})
	now := series[len(series)-1].Time

	snapshot, err := analytics.RecordDailySnapshot(context.Background(), series, nil, now)
	assert.NoError(t, err)

	comparison, ok := store.benchmarks[snapshot.Date]
	assert.True(t, ok)
	btcReturn := (51000.0 - 50000.0) / 50000.0
	assert.InDelta(t, btcReturn, comparison.BTCReturn, 1e-9)
	assert.InDelta(t, snapshot.DailyReturn-comparison.Beta*btcReturn, comparison.Alpha, 1e-9)
}

func TestRecordDailySnapshotRejectsEmptySeries(t *testing.T) {
	analytics, _ := newAnalyticsFixture()

	_, err := analytics.RecordDailySnapshot(context.Background(), nil, nil, time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}
