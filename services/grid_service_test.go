package services

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/acastano/gridvault/models"
)

func newGridFixture() (*GridService, *ledgerMock, *OrderLedgerService) {
	ledger := newLedgerMock()
	volatilityService := NewVolatilityService()
	orderLedger := NewOrderLedgerService(newStoreMock())
	allocator := NewCapitalAllocator(ledger, volatilityService)
	gridService := NewGridService(ledger, orderLedger, volatilityService, allocator)
	return gridService, ledger, orderLedger
}

func TestStartGridPlacesSymmetricLadder(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	result := gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Len(t, ledger.submitted, 10)

	var buys, sells []float64
	for _, order := range ledger.submitted {
		if order.side == models.OrderSideBuy {
			buys = append(buys, order.price)
		} else {
			sells = append(sells, order.price)
		}
		assert.Equal(t, 1.0, order.size)
	}
	sort.Float64s(buys)
	sort.Float64s(sells)

	expectedBuys := []float64{9.50, 9.60, 9.70, 9.80, 9.90}
	expectedSells := []float64{10.10, 10.20, 10.30, 10.40, 10.50}
	for i := range expectedBuys {
		assert.InDelta(t, expectedBuys[i], buys[i], 1e-9)
		assert.InDelta(t, expectedSells[i], sells[i], 1e-9)
	}

	grid, ok := orderLedger.GridByPair("X/Y")
	assert.True(t, ok)
	assert.Equal(t, models.GridStatusActive, grid.Status)
	for i := 1; i <= grid.Levels; i++ {
		assert.Less(t, grid.BuyPrice(i), grid.CenterPrice)
		assert.Greater(t, grid.SellPrice(i), grid.CenterPrice)
	}
}

func TestStartGridRejectsOutOfBoundsParameters(t *testing.T) {
	gridService, ledger, _ := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	result := gridService.StartGrid(context.Background(), "X/Y", 3, 0.01, 1.0, 0)
	assert.Equal(t, models.StatusError, result.Status)

	result = gridService.StartGrid(context.Background(), "X/Y", 5, 0.05, 1.0, 0)
	assert.Equal(t, models.StatusError, result.Status)
}

func TestStartGridToleratesPartialPlacementFailures(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["X/Y"] = 10.0
	ledger.submitErr = func(pair string, side models.OrderSide, price float64) error {
		if side == models.OrderSideSell {
			return fmt.Errorf("%w: rejected", models.ErrLedgerSubmission)
		}
		return nil
	}

	result := gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Contains(t, result.Message, "5/10")

	grid, ok := orderLedger.GridByPair("X/Y")
	assert.True(t, ok)
	assert.Len(t, orderLedger.Orders(grid.ID), 5)
}

func TestStartGridPersistsEvenWithZeroPlacements(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["X/Y"] = 10.0
	ledger.submitErr = func(pair string, side models.OrderSide, price float64) error {
		return fmt.Errorf("%w: venue down", models.ErrLedgerSubmission)
	}

	result := gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)
	assert.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.Message, "0/10")

	// The grid record survives with an empty order set.
	grid, ok := orderLedger.GridByPair("X/Y")
	assert.True(t, ok)
	assert.Empty(t, orderLedger.Orders(grid.ID))
}

func TestStartGridDerivesSizeFromBalance(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["APT/USDT"] = 10.0
	ledger.balances["USDT"] = 1000.0

	result := gridService.StartGrid(context.Background(), "APT/USDT", 5, 0.01, 0, 0)
	assert.Equal(t, models.StatusSuccess, result.Status)

	// 30% of 1000 spread over 5 levels * 2 sides at price 10.
	grid, _ := orderLedger.GridByPair("APT/USDT")
	assert.InDelta(t, 300.0/(5*10.0*2), grid.SizePerLevel, 1e-9)
}

func TestStartGridBudgetCapsDerivedSize(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["APT/USDT"] = 10.0
	ledger.balances["USDT"] = 100000.0

	result := gridService.StartGrid(context.Background(), "APT/USDT", 5, 0.01, 0, 500)
	assert.Equal(t, models.StatusSuccess, result.Status)

	grid, _ := orderLedger.GridByPair("APT/USDT")
	assert.InDelta(t, 500.0/(5*10.0*2), grid.SizePerLevel, 1e-9)
}

func TestStartGridRefusesSecondGridOnSamePair(t *testing.T) {
	gridService, ledger, _ := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	first := gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)
	assert.Equal(t, models.StatusSuccess, first.Status)

	second := gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)
	assert.Equal(t, models.StatusError, second.Status)
	assert.Contains(t, second.Message, "already active")
}

func TestStopGridCancelsEveryTrackedOrder(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)

	result := gridService.StopGrid(context.Background(), "X/Y")
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Len(t, ledger.cancelled, 10)

	_, ok := orderLedger.GridByPair("X/Y")
	assert.False(t, ok)
}

func TestStopGridContinuesPastFailedCancels(t *testing.T) {
	gridService, ledger, _ := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)

	failed := map[string]bool{"order-1": true, "order-4": true}
	ledger.cancelErr = func(orderRef string) error {
		if failed[orderRef] {
			return fmt.Errorf("%w: timeout", models.ErrLedgerSubmission)
		}
		return nil
	}

	result := gridService.StopGrid(context.Background(), "X/Y")
	assert.Equal(t, models.StatusInfo, result.Status)
	assert.Len(t, ledger.cancelled, 8)
	assert.Contains(t, result.Message, "2 cancels failed")
}

func TestMonitorReportsFillRateAndRebates(t *testing.T) {
	gridService, ledger, _ := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)

	// Two fills of size 1 at their level prices.
	ledger.fill("order-1", 1.0)
	ledger.fill("order-2", 1.0)

	performance, err := gridService.Monitor(context.Background(), "X/Y")
	assert.NoError(t, err)
	assert.Equal(t, 10, performance.TotalPlaced)
	assert.Equal(t, 2, performance.FilledOrders)
	assert.Equal(t, 8, performance.ActiveOrders)
	assert.InDelta(t, 0.2, performance.FillRate, 1e-9)
	assert.Greater(t, performance.TotalVolume, 0.0)
	assert.InDelta(t, performance.TotalVolume*MakerRebateRate, performance.TotalRebates, 1e-12)
}

func TestMonitorUnknownPairIsNotFound(t *testing.T) {
	gridService, _, _ := newGridFixture()

	_, err := gridService.Monitor(context.Background(), "NO/PAIR")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAutoAdjustNoopWithinBands(t *testing.T) {
	gridService, ledger, _ := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	gridService.StartGrid(context.Background(), "X/Y", 5, 0.002, 1.0, 0)

	// Price unchanged, fallback volatility keeps spacing at base, book
	// still empty: nothing trips.
	result := gridService.AutoAdjust(context.Background(), "X/Y")
	assert.Equal(t, models.StatusInfo, result.Status)
	assert.Contains(t, result.Message, "within bands")
}

func TestAutoAdjustRecentersAfterPriceMove(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	gridService.StartGrid(context.Background(), "X/Y", 5, 0.002, 1.0, 0)
	oldGrid, _ := orderLedger.GridByPair("X/Y")

	// 8% move from center trips the rebalance.
	ledger.prices["X/Y"] = 10.8

	result := gridService.AutoAdjust(context.Background(), "X/Y")
	assert.Equal(t, models.StatusSuccess, result.Status)

	newGrid, ok := orderLedger.GridByPair("X/Y")
	assert.True(t, ok)
	assert.NotEqual(t, oldGrid.ID, newGrid.ID)
	assert.InDelta(t, 10.8, newGrid.CenterPrice, 1e-9)

	// The original ladder was cancelled before the replacement went out.
	assert.Len(t, ledger.cancelled, 10)
	assert.Len(t, ledger.submitted, 20)
}

func TestStartLiquidityScaledGridGrowsSizeWithDistance(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["APT/USDT"] = 10.0
	ledger.balances["USDT"] = 1000.0

	result := gridService.StartLiquidityScaledGrid(context.Background(), "APT/USDT", 5, 0)
	assert.Equal(t, models.StatusSuccess, result.Status)

	grid, ok := orderLedger.GridByPair("APT/USDT")
	assert.True(t, ok)
	assert.True(t, grid.LiquidityScaled)

	// Outer levels carry more size than inner ones on both sides.
	sizeByLevel := map[int]float64{}
	for _, order := range ledger.submitted {
		if order.side == models.OrderSideBuy {
			for _, tracked := range orderLedger.Orders(grid.ID) {
				if tracked.OrderRef == order.orderRef {
					sizeByLevel[tracked.LevelIndex] = order.size
				}
			}
		}
	}
	assert.Greater(t, sizeByLevel[5], sizeByLevel[1])
	assert.InDelta(t, sizeByLevel[1]*(1+4.0/5.0), sizeByLevel[5], 1e-9)
}

func TestMultiAssetStartOneGridPerPair(t *testing.T) {
	gridService, ledger, orderLedger := newGridFixture()
	ledger.prices["APT/USDT"] = 10.0
	ledger.prices["SOL/USDT"] = 100.0
	ledger.histories["APT/USDT"] = hourlyPrices([]float64{10, 10.05, 10.1, 10, 10.05, 10.1, 10, 10.05, 10.1, 10, 10.05, 10.1, 10})
	ledger.histories["SOL/USDT"] = hourlyPrices([]float64{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 95, 106, 94})

	result := gridService.StartMultiAssetGrid(context.Background(), []string{"APT/USDT", "SOL/USDT"}, 10000, 8)
	assert.Equal(t, models.StatusSuccess, result.Status)

	_, ok := orderLedger.GridByPair("APT/USDT")
	assert.True(t, ok)
	_, ok = orderLedger.GridByPair("SOL/USDT")
	assert.True(t, ok)
}

func TestSummaryListsActiveGrids(t *testing.T) {
	gridService, ledger, _ := newGridFixture()
	ledger.prices["X/Y"] = 10.0

	empty := gridService.Summary(context.Background())
	assert.Equal(t, models.StatusInfo, empty.Status)

	gridService.StartGrid(context.Background(), "X/Y", 5, 0.01, 1.0, 0)

	result := gridService.Summary(context.Background())
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Contains(t, result.Message, "X/Y")
}
