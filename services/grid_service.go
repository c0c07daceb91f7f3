package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
)

const (
	// MakerRebateRate is the venue's maker rebate per filled notional.
	MakerRebateRate = 0.0001

	// MaxBalanceFraction caps how much of the available quote balance a
	// single grid may commit when no explicit size is given.
	MaxBalanceFraction = 0.30

	// Auto-adjust trips when any of these bands is exceeded.
	PriceMoveThreshold      = 0.05
	SpacingDeltaThreshold   = 0.30
	LiquidityDeltaThreshold = 0.30

	// Half of accrued rebates are folded into the replacement grid, but
	// only once they are worth moving.
	CompoundFraction    = 0.5
	MinCompoundRebates  = 0.1
	defaultPlatformCap  = 10000.0
)

// GridService runs the grid lifecycle: start, monitor, stop, auto-adjust.
// Operations on the same pair are serialized; an overlapping call gets an
// explicit conflict result instead of queueing.
type GridService struct {
	ledger            interfaces.LedgerService
	orderLedger       *OrderLedgerService
	volatilityService *VolatilityService
	allocator         *CapitalAllocator

	pairLocks   sync.Map // pair -> *sync.Mutex
	platformCap float64
}

func NewGridService(ledger interfaces.LedgerService, orderLedger *OrderLedgerService,
	volatilityService *VolatilityService, allocator *CapitalAllocator) *GridService {

	platformCap := defaultPlatformCap
	if raw := os.Getenv("gridPlatformCap"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			platformCap = parsed
		}
	}

	return &GridService{
		ledger:            ledger,
		orderLedger:       orderLedger,
		volatilityService: volatilityService,
		allocator:         allocator,
		platformCap:       platformCap,
	}
}

func (gridService *GridService) pairLock(pair string) *sync.Mutex {
	lock, _ := gridService.pairLocks.LoadOrStore(pair, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// StartGrid places a symmetric ladder around the current price. Per-order
// submission failures are logged and skipped; the grid persists even when
// zero orders land, and the result reports the shortfall.
func (gridService *GridService) StartGrid(ctx context.Context, pair string, levels int,
	spacing float64, sizePerLevel float64, budget float64) models.OperationResult {

	lock := gridService.pairLock(pair)
	if !lock.TryLock() {
		return models.ErrorResult("%v: %s", models.ErrConcurrencyConflict, pair)
	}
	defer lock.Unlock()

	if _, ok := gridService.orderLedger.GridByPair(pair); ok {
		return models.ErrorResult("grid already active on %s, stop it first", pair)
	}

	centerPrice, err := gridService.ledger.GetPrice(ctx, pair)
	if err != nil {
		return models.ErrorResult("cannot price %s: %v", pair, err)
	}

	if sizePerLevel <= 0 {
		sizePerLevel, err = gridService.deriveSizePerLevel(ctx, pair, levels, centerPrice, budget)
		if err != nil {
			return models.ErrorResult("cannot size grid on %s: %v", pair, err)
		}
	}

	grid := &models.GridStrategy{
		ID:              uuid.New().String(),
		Pair:            pair,
		CenterPrice:     centerPrice,
		Spacing:         spacing,
		Levels:          levels,
		SizePerLevel:    sizePerLevel,
		LiquidityFactor: 1.0,
		Status:          models.GridStatusActive,
		CreatedAt:       time.Now(),
	}
	if err := grid.Validate(); err != nil {
		return models.ErrorResult("%v", err)
	}

	if book, bookErr := gridService.ledger.GetOrderBook(ctx, pair); bookErr == nil {
		grid.LiquidityFactor = gridService.volatilityService.LiquidityFactor(book, centerPrice)
	}

	gridService.orderLedger.RegisterGrid(grid)
	placed := gridService.placeGridOrders(ctx, grid)

	rebatePerFill := grid.SizePerLevel * grid.CenterPrice * MakerRebateRate
	if placed == 0 {
		return models.ErrorResult(
			"grid on %s persisted but no orders placed (0/%d), range %.4f-%.4f",
			pair, 2*levels, grid.RangeLow(), grid.RangeHigh())
	}

	helpers.Logger.Infoln(fmt.Sprintf("🟢 Grid started on %s: %d/%d orders, center %.4f",
		pair, placed, 2*levels, centerPrice))
	return models.SuccessResult(
		"grid on %s: %d/%d orders placed, range %.4f-%.4f, est. rebate/fill %.6f",
		pair, placed, 2*levels, grid.RangeLow(), grid.RangeHigh(), rebatePerFill)
}

// StartLiquidityScaledGrid derives spacing from live volatility, scales the
// per-level size by the liquidity factor, and grows size with distance from
// center.
func (gridService *GridService) StartLiquidityScaledGrid(ctx context.Context, pair string,
	levels int, budget float64) models.OperationResult {

	lock := gridService.pairLock(pair)
	if !lock.TryLock() {
		return models.ErrorResult("%v: %s", models.ErrConcurrencyConflict, pair)
	}
	defer lock.Unlock()

	if _, ok := gridService.orderLedger.GridByPair(pair); ok {
		return models.ErrorResult("grid already active on %s, stop it first", pair)
	}

	centerPrice, err := gridService.ledger.GetPrice(ctx, pair)
	if err != nil {
		return models.ErrorResult("cannot price %s: %v", pair, err)
	}

	history, err := gridService.ledger.GetPriceHistory(ctx, pair, 24)
	if err != nil {
		helpers.Logger.Warnln(fmt.Sprintf("grid: no history for %s, using fallback volatility: %v", pair, err))
		history = nil
	}
	volatility := gridService.volatilityService.AnnualizedVolatility(history)
	spacing := gridService.volatilityService.OptimalSpacing(volatility)

	liquidityFactor := 1.0
	if book, bookErr := gridService.ledger.GetOrderBook(ctx, pair); bookErr == nil {
		liquidityFactor = gridService.volatilityService.LiquidityFactor(book, centerPrice)
	}

	sizePerLevel, err := gridService.deriveSizePerLevel(ctx, pair, levels, centerPrice, budget)
	if err != nil {
		return models.ErrorResult("cannot size grid on %s: %v", pair, err)
	}
	sizePerLevel *= liquidityFactor

	grid := &models.GridStrategy{
		ID:              uuid.New().String(),
		Pair:            pair,
		CenterPrice:     centerPrice,
		Spacing:         spacing,
		Levels:          levels,
		SizePerLevel:    sizePerLevel,
		LiquidityFactor: liquidityFactor,
		LiquidityScaled: true,
		Status:          models.GridStatusActive,
		CreatedAt:       time.Now(),
	}
	if err := grid.Validate(); err != nil {
		return models.ErrorResult("%v", err)
	}

	gridService.orderLedger.RegisterGrid(grid)
	placed := gridService.placeGridOrders(ctx, grid)

	if placed == 0 {
		return models.ErrorResult(
			"liquidity-scaled grid on %s persisted but no orders placed (0/%d)", pair, 2*levels)
	}

	helpers.Logger.Infoln(fmt.Sprintf("🟢 Liquidity-scaled grid on %s: %d/%d orders, spacing %.4f, lf %.2f",
		pair, placed, 2*levels, spacing, liquidityFactor))
	return models.SuccessResult(
		"liquidity-scaled grid on %s: %d/%d orders placed, spacing %.4f, liquidity factor %.2f",
		pair, placed, 2*levels, spacing, liquidityFactor)
}

// StartMultiAssetGrid allocates capital across pairs by inverse volatility
// and starts one liquidity-scaled grid per pair.
func (gridService *GridService) StartMultiAssetGrid(ctx context.Context, pairs []string,
	totalCapital float64, baseLevels int) models.OperationResult {

	allocations, err := gridService.allocator.Allocate(ctx, pairs, totalCapital, baseLevels)
	if err != nil {
		return models.ErrorResult("allocation failed: %v", err)
	}

	started := 0
	var failures []string
	for _, allocation := range allocations {
		result := gridService.startAllocatedGrid(ctx, allocation)
		if result.Status == models.StatusSuccess {
			started++
		} else {
			failures = append(failures, fmt.Sprintf("%s: %s", allocation.Pair, result.Message))
		}
	}

	if started == 0 {
		return models.ErrorResult("no grids started: %s", strings.Join(failures, "; "))
	}
	if len(failures) > 0 {
		return models.InfoResult("started %d/%d grids; failed: %s",
			started, len(allocations), strings.Join(failures, "; "))
	}
	return models.SuccessResult("started %d grids across %.2f capital", started, totalCapital)
}

func (gridService *GridService) startAllocatedGrid(ctx context.Context, allocation PairAllocation) models.OperationResult {
	lock := gridService.pairLock(allocation.Pair)
	if !lock.TryLock() {
		return models.ErrorResult("%v: %s", models.ErrConcurrencyConflict, allocation.Pair)
	}
	defer lock.Unlock()

	if _, ok := gridService.orderLedger.GridByPair(allocation.Pair); ok {
		return models.ErrorResult("grid already active")
	}

	spacing := gridService.volatilityService.OptimalSpacing(allocation.Volatility)

	grid := &models.GridStrategy{
		ID:              uuid.New().String(),
		Pair:            allocation.Pair,
		CenterPrice:     allocation.Price,
		Spacing:         spacing,
		Levels:          allocation.Levels,
		SizePerLevel:    allocation.SizePerLevel,
		LiquidityFactor: 1.0,
		Status:          models.GridStatusActive,
		CreatedAt:       time.Now(),
	}
	if err := grid.Validate(); err != nil {
		return models.ErrorResult("%v", err)
	}

	gridService.orderLedger.RegisterGrid(grid)
	placed := gridService.placeGridOrders(ctx, grid)
	if placed == 0 {
		return models.ErrorResult("no orders placed")
	}
	return models.SuccessResult("%d/%d orders placed", placed, 2*grid.Levels)
}

// deriveSizePerLevel spreads the usable quote budget across both sides of
// the ladder.
func (gridService *GridService) deriveSizePerLevel(ctx context.Context, pair string,
	levels int, price float64, budget float64) (float64, error) {

	quote := "USDT"
	if parts := strings.Split(pair, "/"); len(parts) == 2 {
		quote = parts[1]
	}

	balance, err := gridService.ledger.GetBalance(ctx, quote)
	if err != nil {
		return 0, err
	}

	usable := balance * MaxBalanceFraction
	if usable > gridService.platformCap {
		usable = gridService.platformCap
	}
	if budget > 0 && budget < usable {
		usable = budget
	}
	if usable <= 0 {
		return 0, fmt.Errorf("%w: no usable %s balance", models.ErrInsufficientBalance, quote)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: non-positive price", models.ErrInvalidParameter)
	}

	return usable / (float64(levels) * price * 2), nil
}

func (gridService *GridService) placeGridOrders(ctx context.Context, grid *models.GridStrategy) int {
	placed := 0
	for i := 1; i <= grid.Levels; i++ {
		size := grid.SizePerLevel
		if grid.LiquidityScaled {
			size *= 1 + float64(i-1)/float64(grid.Levels)
		}

		if gridService.placeOrder(ctx, grid, models.OrderSideBuy, i, grid.BuyPrice(i), size) {
			placed++
		}
		if gridService.placeOrder(ctx, grid, models.OrderSideSell, i, grid.SellPrice(i), size) {
			placed++
		}
	}
	return placed
}

func (gridService *GridService) placeOrder(ctx context.Context, grid *models.GridStrategy,
	side models.OrderSide, level int, price float64, size float64) bool {

	receipt, err := gridService.ledger.SubmitOrder(ctx, grid.Pair, side, size, price)
	if err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("grid %s: %s level %d at %.4f failed: %v",
			grid.Pair, side, level, price, err))
		return false
	}

	gridService.orderLedger.TrackOrder(&models.GridOrder{
		GridID:     grid.ID,
		Pair:       grid.Pair,
		Side:       side,
		LevelIndex: level,
		Price:      price,
		Size:       size,
		Status:     models.OrderStatusActive,
		OrderRef:   receipt.OrderRef,
		TxRef:      receipt.TxRef,
		CreatedAt:  time.Now(),
	})
	return true
}

// Monitor polls every tracked order and aggregates the grid's observed
// performance. A failed status query leaves that order's last known state.
func (gridService *GridService) Monitor(ctx context.Context, pair string) (*models.GridPerformance, error) {
	grid, ok := gridService.orderLedger.GridByPair(pair)
	if !ok {
		return nil, fmt.Errorf("%w: no active grid on %s", models.ErrNotFound, pair)
	}

	orders := gridService.orderLedger.Orders(grid.ID)
	active, filled := 0, 0
	totalVolume := 0.0
	for _, order := range orders {
		if order.Status == models.OrderStatusCancelled {
			continue
		}

		state, err := gridService.ledger.QueryOrderStatus(ctx, pair, order.OrderRef)
		if err != nil {
			helpers.Logger.Warnln(fmt.Sprintf("grid %s: status of %s failed: %v", pair, order.OrderRef, err))
			if order.Status == models.OrderStatusActive {
				active++
			}
			continue
		}

		if state.Active {
			active++
			continue
		}
		if state.FilledSize > 0 {
			gridService.orderLedger.UpdateOrderStatus(order, models.OrderStatusFilled)
			filled++
			totalVolume += state.FilledSize * order.Price
		} else {
			gridService.orderLedger.UpdateOrderStatus(order, models.OrderStatusCancelled)
		}
	}

	currentPrice, err := gridService.ledger.GetPrice(ctx, pair)
	if err != nil {
		currentPrice = grid.CenterPrice
	}

	runtimeHours := time.Since(grid.CreatedAt).Hours()
	totalRebates := totalVolume * MakerRebateRate
	performance := &models.GridPerformance{
		Pair:                pair,
		RuntimeHours:        runtimeHours,
		TotalPlaced:         len(orders),
		ActiveOrders:        active,
		FilledOrders:        filled,
		TotalVolume:         totalVolume,
		TotalRebates:        totalRebates,
		CurrentCenterPrice:  currentPrice,
		OriginalCenterPrice: grid.CenterPrice,
	}
	if len(orders) > 0 {
		performance.FillRate = float64(filled) / float64(len(orders))
	}
	if runtimeHours > 0 {
		performance.HourlyRebateRate = totalRebates / runtimeHours
	}
	return performance, nil
}

// StopGrid cancels every tracked order best-effort and retires the grid.
func (gridService *GridService) StopGrid(ctx context.Context, pair string) models.OperationResult {
	lock := gridService.pairLock(pair)
	if !lock.TryLock() {
		return models.ErrorResult("%v: %s", models.ErrConcurrencyConflict, pair)
	}
	defer lock.Unlock()

	return gridService.stopLocked(ctx, pair)
}

func (gridService *GridService) stopLocked(ctx context.Context, pair string) models.OperationResult {
	grid, ok := gridService.orderLedger.GridByPair(pair)
	if !ok {
		return models.ErrorResult("%v: no active grid on %s", models.ErrNotFound, pair)
	}

	orders := gridService.orderLedger.Orders(grid.ID)
	cancelled, failed := 0, 0
	for _, order := range orders {
		if order.Status != models.OrderStatusActive && order.Status != models.OrderStatusPending {
			continue
		}
		if err := gridService.ledger.CancelOrder(ctx, pair, order.OrderRef); err != nil {
			failed++
			helpers.Logger.Errorln(fmt.Sprintf("grid %s: cancel %s failed: %v", pair, order.OrderRef, err))
			continue
		}
		cancelled++
		gridService.orderLedger.UpdateOrderStatus(order, models.OrderStatusCancelled)
	}

	gridService.orderLedger.RemoveGrid(pair)
	helpers.Logger.Infoln(fmt.Sprintf("🔴 Grid stopped on %s: %d cancelled, %d failed", pair, cancelled, failed))

	if failed > 0 {
		return models.InfoResult("grid on %s stopped: %d cancelled, %d cancels failed", pair, cancelled, failed)
	}
	return models.SuccessResult("grid on %s stopped: %d orders cancelled", pair, cancelled)
}

// AutoAdjust recenters a drifted grid. The replacement keeps the level
// count, adopts the freshly computed spacing and liquidity factor, and
// folds half the accrued rebates into its size once they are worth moving.
func (gridService *GridService) AutoAdjust(ctx context.Context, pair string) models.OperationResult {
	lock := gridService.pairLock(pair)
	if !lock.TryLock() {
		return models.ErrorResult("%v: %s", models.ErrConcurrencyConflict, pair)
	}
	defer lock.Unlock()

	grid, ok := gridService.orderLedger.GridByPair(pair)
	if !ok {
		return models.ErrorResult("%v: no active grid on %s", models.ErrNotFound, pair)
	}

	currentPrice, err := gridService.ledger.GetPrice(ctx, pair)
	if err != nil {
		return models.ErrorResult("cannot price %s: %v", pair, err)
	}

	history, err := gridService.ledger.GetPriceHistory(ctx, pair, 24)
	if err != nil {
		history = nil
	}
	volatility := gridService.volatilityService.AnnualizedVolatility(history)
	optimalSpacing := gridService.volatilityService.OptimalSpacing(volatility)

	liquidityFactor := 1.0
	if book, bookErr := gridService.ledger.GetOrderBook(ctx, pair); bookErr == nil {
		liquidityFactor = gridService.volatilityService.LiquidityFactor(book, currentPrice)
	}

	priceMove := relativeDelta(currentPrice, grid.CenterPrice)
	spacingDelta := relativeDelta(optimalSpacing, grid.Spacing)
	liquidityDelta := relativeDelta(liquidityFactor, grid.LiquidityFactor)

	if priceMove <= PriceMoveThreshold && spacingDelta <= SpacingDeltaThreshold &&
		liquidityDelta <= LiquidityDeltaThreshold {
		return models.InfoResult(
			"grid on %s within bands: price move %.2f%%, spacing delta %.2f%%, liquidity delta %.2f%%",
			pair, priceMove*100, spacingDelta*100, liquidityDelta*100)
	}

	performance, err := gridService.Monitor(ctx, pair)
	rebates := 0.0
	if err == nil {
		rebates = performance.TotalRebates
	}

	newSize := grid.SizePerLevel
	if rebates > MinCompoundRebates {
		newSize += rebates * CompoundFraction / (float64(grid.Levels) * currentPrice * 2)
	}
	levels := grid.Levels
	scaled := grid.LiquidityScaled

	stopResult := gridService.stopLocked(ctx, pair)
	if stopResult.Status == models.StatusError {
		return stopResult
	}

	newGrid := &models.GridStrategy{
		ID:              uuid.New().String(),
		Pair:            pair,
		CenterPrice:     currentPrice,
		Spacing:         optimalSpacing,
		Levels:          levels,
		SizePerLevel:    newSize,
		LiquidityFactor: liquidityFactor,
		LiquidityScaled: scaled,
		Status:          models.GridStatusActive,
		CreatedAt:       time.Now(),
	}
	if err := newGrid.Validate(); err != nil {
		return models.ErrorResult("replacement grid invalid: %v", err)
	}

	gridService.orderLedger.RegisterGrid(newGrid)
	placed := gridService.placeGridOrders(ctx, newGrid)

	helpers.Logger.Infoln(fmt.Sprintf("🔄 Grid on %s re-centered at %.4f: %d/%d orders, spacing %.4f",
		pair, currentPrice, placed, 2*levels, optimalSpacing))
	return models.SuccessResult(
		"grid on %s re-centered at %.4f: %d/%d orders, spacing %.4f, compounded %.4f rebates",
		pair, currentPrice, placed, 2*levels, optimalSpacing, rebates*CompoundFraction)
}

// Summary renders the active grids as a text table for the chat surface.
func (gridService *GridService) Summary(ctx context.Context) models.OperationResult {
	pairs := gridService.orderLedger.ActivePairs()
	if len(pairs) == 0 {
		return models.InfoResult("no active grids")
	}

	buffer := &bytes.Buffer{}
	table := tablewriter.NewWriter(buffer)
	table.Header("PAIR", "CENTER", "SPACING", "LEVELS", "FILL RATE", "VOLUME", "REBATES")

	for _, pair := range pairs {
		grid, ok := gridService.orderLedger.GridByPair(pair)
		if !ok {
			continue
		}
		performance, err := gridService.Monitor(ctx, pair)
		if err != nil {
			continue
		}
		table.Append(
			pair,
			fmt.Sprintf("%.4f", grid.CenterPrice),
			fmt.Sprintf("%.4f", grid.Spacing),
			strconv.Itoa(grid.Levels),
			fmt.Sprintf("%.1f%%", performance.FillRate*100),
			fmt.Sprintf("%.2f", performance.TotalVolume),
			fmt.Sprintf("%.4f", performance.TotalRebates),
		)
	}
	_ = table.Render()

	return models.SuccessResult("%s", buffer.String())
}

func relativeDelta(current float64, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	delta := (current - reference) / reference
	if delta < 0 {
		return -delta
	}
	return delta
}
