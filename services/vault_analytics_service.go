package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
)

const (
	// TradingDaysPerYear annualizes the Sharpe ratio.
	TradingDaysPerYear = 252

	// Drawdown tracking starts at a 5% decline, closes on a 5% recovery
	// off the trough, and only declines of 10%+ are recorded.
	DrawdownTrackingThreshold = 0.05
	DrawdownRecoveryFactor    = 1.05
	DrawdownRecordThreshold   = 0.10

	defaultBenchmarkBeta = 1.2
	snapshotDateLayout   = "2006-01-02"
)

// VaultAnalyticsService turns the vault value series and fill history into
// daily performance snapshots and benchmark comparisons. Computations are
// pure and idempotent; insufficient history degrades to zeros, never to an
// error.
type VaultAnalyticsService struct {
	store      interfaces.VaultStore
	marketData interfaces.MarketDataProvider

	beta         float64
	riskFreeRate float64
}

func NewVaultAnalyticsService(store interfaces.VaultStore, marketData interfaces.MarketDataProvider) *VaultAnalyticsService {
	beta := defaultBenchmarkBeta
	if raw := os.Getenv("benchmarkBeta"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			beta = parsed
		}
	}
	riskFreeRate := 0.0
	if raw := os.Getenv("riskFreeRate"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			riskFreeRate = parsed
		}
	}

	return &VaultAnalyticsService{
		store:        store,
		marketData:   marketData,
		beta:         beta,
		riskFreeRate: riskFreeRate,
	}
}

// PeriodReturn compares the latest value to the most recent sample at or
// before now minus the period.
func (analytics *VaultAnalyticsService) PeriodReturn(series []models.ValuePoint, now time.Time, period time.Duration) float64 {
	if len(series) == 0 {
		return 0
	}
	current := series[len(series)-1].Value

	cutoff := now.Add(-period)
	reference := 0.0
	found := false
	for _, point := range series {
		if point.Time.After(cutoff) {
			break
		}
		reference = point.Value
		found = true
	}

	if !found || reference == 0 {
		return 0
	}
	return (current - reference) / reference
}

// SharpeRatio annualizes mean over stdev of daily returns by √252.
func (analytics *VaultAnalyticsService) SharpeRatio(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	mean := helpers.Mean(dailyReturns)
	stdev := helpers.StdDev(dailyReturns, mean)
	if stdev == 0 {
		return 0
	}
	return mean / stdev * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown is the deepest peak-to-value decline over the series.
func (analytics *VaultAnalyticsService) MaxDrawdown(values []float64) float64 {
	maxDrawdown := 0.0
	peak := 0.0
	for _, value := range values {
		if value > peak {
			peak = value
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - value) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// DrawdownEvents scans the series in two phases: a 5% decline from the
// running peak opens tracking, the trough follows the value down, and a
// recovery to 105% of the trough closes the event. Only declines of 10%+
// are reported.
func (analytics *VaultAnalyticsService) DrawdownEvents(series []models.ValuePoint) []models.DrawdownEvent {
	var events []models.DrawdownEvent

	peak := 0.0
	var peakTime, troughTime time.Time
	trough := 0.0
	tracking := false

	for _, point := range series {
		if !tracking {
			if point.Value > peak {
				peak = point.Value
				peakTime = point.Time
				continue
			}
			if peak > 0 && (peak-point.Value)/peak >= DrawdownTrackingThreshold {
				tracking = true
				trough = point.Value
				troughTime = point.Time
			}
			continue
		}

		if point.Value < trough {
			trough = point.Value
			troughTime = point.Time
			continue
		}

		if point.Value >= trough*DrawdownRecoveryFactor {
			depth := (peak - trough) / peak
			if depth >= DrawdownRecordThreshold {
				events = append(events, models.DrawdownEvent{
					StartDate:    peakTime.Format(snapshotDateLayout),
					TroughDate:   troughTime.Format(snapshotDateLayout),
					RecoveryDate: point.Time.Format(snapshotDateLayout),
					Depth:        depth,
					DurationDays: troughTime.Sub(peakTime).Hours() / 24,
				})
			}
			tracking = false
			peak = point.Value
			peakTime = point.Time
		}
	}

	return events
}

// WinRate is the fraction of positive daily returns.
func (analytics *VaultAnalyticsService) WinRate(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	wins := 0
	for _, dailyReturn := range dailyReturns {
		if dailyReturn > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(dailyReturns))
}

// BestAsset ranks pairs by accrued maker rebates.
func (analytics *VaultAnalyticsService) BestAsset(fills []models.Fill) string {
	rebates := make(map[string]float64)
	for _, fill := range fills {
		if fill.IsMaker {
			rebates[fill.Pair] += fill.Notional() * MakerRebateRate
		}
	}

	best := ""
	bestRebates := 0.0
	for pair, total := range rebates {
		if total > bestRebates {
			best = pair
			bestRebates = total
		}
	}
	return best
}

// Alpha is the vault's excess return over the beta-scaled benchmark.
func (analytics *VaultAnalyticsService) Alpha(vaultReturn float64, benchmarkReturn float64) float64 {
	return vaultReturn - analytics.riskFreeRate - analytics.beta*(benchmarkReturn-analytics.riskFreeRate)
}

// RecordDailySnapshot computes the day's analytics and upserts the
// snapshot, any newly closed drawdown events, and the benchmark row.
func (analytics *VaultAnalyticsService) RecordDailySnapshot(ctx context.Context,
	series []models.ValuePoint, fills []models.Fill, now time.Time) (*models.PerformanceSnapshot, error) {

	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty value series", models.ErrInvalidParameter)
	}

	values := make([]float64, 0, len(series))
	for _, point := range series {
		values = append(values, point.Value)
	}
	dailyReturns := helpers.SimpleReturns(values)

	snapshot := &models.PerformanceSnapshot{
		Date:          now.Format(snapshotDateLayout),
		TotalValue:    series[len(series)-1].Value,
		DailyReturn:   analytics.PeriodReturn(series, now, 24*time.Hour),
		WeeklyReturn:  analytics.PeriodReturn(series, now, 7*24*time.Hour),
		MonthlyReturn: analytics.PeriodReturn(series, now, 30*24*time.Hour),
		SharpeRatio:   analytics.SharpeRatio(dailyReturns),
		MaxDrawdown:   analytics.MaxDrawdown(values),
		WinRate:       analytics.WinRate(dailyReturns),
		BestAsset:     analytics.BestAsset(fills),
		Timestamp:     now.Unix(),
	}

	if err := analytics.store.SaveSnapshot(snapshot); err != nil {
		return nil, err
	}

	for _, event := range analytics.DrawdownEvents(series) {
		saved := event
		if err := analytics.store.SaveDrawdownEvent(&saved); err != nil {
			helpers.Logger.Errorln(fmt.Sprintf("analytics: saving drawdown event failed: %v", err))
		}
	}

	if err := analytics.recordBenchmark(ctx, snapshot); err != nil {
		helpers.Logger.Warnln(fmt.Sprintf("analytics: benchmark comparison skipped: %v", err))
	}

	return snapshot, nil
}

// LatestSnapshot returns the most recent persisted daily snapshot.
func (analytics *VaultAnalyticsService) LatestSnapshot() (*models.PerformanceSnapshot, error) {
	snapshots, err := analytics.store.LoadSnapshots(1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshots recorded yet", models.ErrNotFound)
	}
	return &snapshots[0], nil
}

func (analytics *VaultAnalyticsService) recordBenchmark(ctx context.Context, snapshot *models.PerformanceSnapshot) error {
	btcReturn, err := analytics.dailyBenchmarkReturn(ctx, "BTC/USDT")
	if err != nil {
		return err
	}
	ethReturn, err := analytics.dailyBenchmarkReturn(ctx, "ETH/USDT")
	if err != nil {
		return err
	}

	comparison := &models.BenchmarkComparison{
		Date:        snapshot.Date,
		VaultReturn: snapshot.DailyReturn,
		BTCReturn:   btcReturn,
		ETHReturn:   ethReturn,
		Alpha:       analytics.Alpha(snapshot.DailyReturn, btcReturn),
		Beta:        analytics.beta,
		Timestamp:   snapshot.Timestamp,
	}
	return analytics.store.SaveBenchmark(comparison)
}

func (analytics *VaultAnalyticsService) dailyBenchmarkReturn(ctx context.Context, pair string) (float64, error) {
	history, err := analytics.marketData.GetPriceHistory(ctx, pair, 24)
	if err != nil {
		return 0, err
	}
	if len(history) < 2 || history[0].Price == 0 {
		return 0, fmt.Errorf("%w: not enough %s history", models.ErrNotFound, pair)
	}
	return (history[len(history)-1].Price - history[0].Price) / history[0].Price, nil
}
