package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
	"gitlab.com/acastano/gridvault/services"
)

const (
	// MaxUtilization is the warning line for capital committed to resting
	// orders as a fraction of vault value.
	MaxUtilization = 0.8

	// healthSampleHistory caps how many persisted samples are reloaded on
	// startup: a week of 5-minute readings.
	healthSampleHistory = 2016
)

// Engine runs the periodic loops: analytics recomputation every 6h, vault
// health sampling every 5m, and per-grid auto-management every 15m. Stop
// signals every loop and waits for them to drain before returning.
type Engine struct {
	ledger       interfaces.LedgerService
	orderLedger  *services.OrderLedgerService
	gridService  *services.GridService
	analytics    *services.VaultAnalyticsService
	vaultStore   interfaces.VaultStore
	trackedPairs []string

	metricsInterval    time.Duration
	healthInterval     time.Duration
	autoManageInterval time.Duration

	mutex       sync.Mutex
	valueSeries []models.ValuePoint

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(ledger interfaces.LedgerService, orderLedger *services.OrderLedgerService,
	gridService *services.GridService, analytics *services.VaultAnalyticsService,
	vaultStore interfaces.VaultStore, trackedPairs []string) *Engine {

	return &Engine{
		ledger:             ledger,
		orderLedger:        orderLedger,
		gridService:        gridService,
		analytics:          analytics,
		vaultStore:         vaultStore,
		trackedPairs:       trackedPairs,
		metricsInterval:    intervalFromEnv("metricsInterval", 6*time.Hour),
		healthInterval:     intervalFromEnv("healthInterval", 5*time.Minute),
		autoManageInterval: intervalFromEnv("autoManageInterval", 15*time.Minute),
	}
}

func intervalFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := str2duration.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		helpers.Logger.Warnln(fmt.Sprintf("engine: bad %s %q, using %s", key, raw, fallback))
		return fallback
	}
	return parsed
}

func (engine *Engine) Start() {
	engine.restoreValueSeries()

	ctx, cancel := context.WithCancel(context.Background())
	engine.cancel = cancel

	engine.wg.Add(3)
	go engine.metricsLoop(ctx)
	go engine.healthLoop(ctx)
	go engine.autoManageLoop(ctx)

	helpers.Logger.Infoln(fmt.Sprintf("engine: loops started (metrics %s, health %s, auto-manage %s)",
		engine.metricsInterval, engine.healthInterval, engine.autoManageInterval))
}

// Stop cancels every loop and blocks until all of them have exited.
func (engine *Engine) Stop() {
	if engine.cancel == nil {
		return
	}
	engine.cancel()
	engine.wg.Wait()
	helpers.Logger.Infoln("engine: all loops stopped")
}

func (engine *Engine) metricsLoop(ctx context.Context) {
	defer engine.wg.Done()

	ticker := time.NewTicker(engine.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.recomputeMetrics(ctx)
		}
	}
}

func (engine *Engine) recomputeMetrics(ctx context.Context) {
	series := engine.ValueSeries()
	if len(series) == 0 {
		helpers.Logger.Debugln("engine: no value samples yet, skipping metrics")
		return
	}

	snapshot, err := engine.analytics.RecordDailySnapshot(ctx, series, engine.observedFills(), time.Now())
	if err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("engine: metrics recomputation failed: %v", err))
		return
	}
	helpers.Logger.Infoln(fmt.Sprintf("📊 Snapshot %s: value %.2f, sharpe %.2f, maxDD %.2f%%",
		snapshot.Date, snapshot.TotalValue, snapshot.SharpeRatio, snapshot.MaxDrawdown*100))
}

func (engine *Engine) healthLoop(ctx context.Context) {
	defer engine.wg.Done()

	ticker := time.NewTicker(engine.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.sampleVaultValue(ctx)
		}
	}
}

// restoreValueSeries reloads persisted health samples so the value series
// picks up where the previous run left off.
func (engine *Engine) restoreValueSeries() {
	samples, err := engine.vaultStore.LoadHealthSamples(healthSampleHistory)
	if err != nil {
		helpers.Logger.Warnln(fmt.Sprintf("engine: could not restore health samples: %v", err))
		return
	}
	if len(samples) == 0 {
		return
	}

	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	engine.valueSeries = engine.valueSeries[:0]
	for _, sample := range samples {
		engine.valueSeries = append(engine.valueSeries, models.ValuePoint{Time: sample.Time, Value: sample.TotalValue})
	}
	helpers.Logger.Infoln(fmt.Sprintf("engine: restored %d health samples", len(samples)))
}

// sampleVaultValue marks balances to market across the tracked pairs,
// persists the health sample and appends it to the value series.
func (engine *Engine) sampleVaultValue(ctx context.Context) {
	total := 0.0
	seen := map[string]bool{}

	for _, pair := range engine.trackedPairs {
		parts := strings.Split(pair, "/")
		if len(parts) != 2 {
			continue
		}
		base, quote := parts[0], parts[1]

		if !seen[base] {
			seen[base] = true
			balance, err := engine.ledger.GetBalance(ctx, base)
			if err == nil {
				price, priceErr := engine.ledger.GetPrice(ctx, pair)
				if priceErr == nil {
					total += balance * price
				}
			}
		}
		if !seen[quote] {
			seen[quote] = true
			balance, err := engine.ledger.GetBalance(ctx, quote)
			if err == nil {
				total += balance
			}
		}
	}

	if total <= 0 {
		return
	}

	utilization := engine.committedUtilization(total)
	sample := models.HealthSample{Time: time.Now(), TotalValue: total, Utilization: utilization}
	if err := engine.vaultStore.SaveHealthSample(&sample); err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("engine: persisting health sample failed: %v", err))
	}

	engine.mutex.Lock()
	previous := 0.0
	if len(engine.valueSeries) > 0 {
		previous = engine.valueSeries[len(engine.valueSeries)-1].Value
	}
	engine.valueSeries = append(engine.valueSeries, models.ValuePoint{Time: sample.Time, Value: total})
	engine.mutex.Unlock()

	if utilization > MaxUtilization {
		helpers.Logger.Warnln(fmt.Sprintf("⚠️ Vault utilization %.1f%% exceeds %.0f%% of vault value",
			utilization*100, MaxUtilization*100))
	}
	if previous > 0 && (previous-total)/previous > 0.10 {
		helpers.Logger.Warnln(fmt.Sprintf("⚠️ Vault value dropped %.1f%% since last sample (%.2f -> %.2f)",
			(previous-total)/previous*100, previous, total))
	}
}

// committedUtilization is the notional of outstanding grid orders relative
// to total vault value.
func (engine *Engine) committedUtilization(totalValue float64) float64 {
	if totalValue <= 0 {
		return 0
	}

	committed := 0.0
	for _, pair := range engine.orderLedger.ActivePairs() {
		grid, ok := engine.orderLedger.GridByPair(pair)
		if !ok {
			continue
		}
		for _, order := range engine.orderLedger.Orders(grid.ID) {
			if order.Status == models.OrderStatusActive || order.Status == models.OrderStatusPending {
				committed += order.Price * order.Size
			}
		}
	}
	return committed / totalValue
}

func (engine *Engine) autoManageLoop(ctx context.Context) {
	defer engine.wg.Done()

	ticker := time.NewTicker(engine.autoManageInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pair := range engine.orderLedger.ActivePairs() {
				result := engine.gridService.AutoAdjust(ctx, pair)
				if result.Status == models.StatusError {
					helpers.Logger.Errorln(fmt.Sprintf("engine: auto-adjust %s: %s", pair, result.Message))
				}
			}
		}
	}
}

// ValueSeries returns a copy of the sampled vault values.
func (engine *Engine) ValueSeries() []models.ValuePoint {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	series := make([]models.ValuePoint, len(engine.valueSeries))
	copy(series, engine.valueSeries)
	return series
}

// observedFills reconstructs maker fills from the persisted filled orders,
// so stopped and replaced grids keep contributing to the analytics.
func (engine *Engine) observedFills() []models.Fill {
	orders, err := engine.orderLedger.FilledOrders()
	if err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("engine: loading filled orders failed: %v", err))
		return nil
	}

	var fills []models.Fill
	for _, order := range orders {
		fills = append(fills, models.Fill{
			Pair:    order.Pair,
			Side:    order.Side,
			Size:    order.Size,
			Price:   order.Price,
			IsMaker: true,
			Time:    order.CreatedAt,
		})
	}
	return fills
}
