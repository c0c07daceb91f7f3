package models

import (
	"fmt"
	"time"
)

type GridStatus string

const (
	GridStatusActive  GridStatus = "ACTIVE"
	GridStatusStopped GridStatus = "STOPPED"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Grid level bounds. Spacing is the fractional price gap between adjacent
// levels; the two constants bound what a caller may request.
const (
	MinGridSpacing = 0.001
	MaxGridSpacing = 0.01
	MinGridLevels  = 5
	MaxGridLevels  = 20
)

// GridStrategy is the configuration of one active grid: a ladder of buy
// levels strictly below the center price and sell levels strictly above it.
type GridStrategy struct {
	ID              string     `json:"id"`
	Pair            string     `json:"pair"`
	CenterPrice     float64    `json:"centerPrice"`
	Spacing         float64    `json:"spacing"`
	Levels          int        `json:"levels"`
	SizePerLevel    float64    `json:"sizePerLevel"`
	LiquidityFactor float64    `json:"liquidityFactor"`
	LiquidityScaled bool       `json:"liquidityScaled"`
	Status          GridStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (g *GridStrategy) Validate() error {
	if g.Spacing < MinGridSpacing || g.Spacing > MaxGridSpacing {
		return fmt.Errorf("%w: spacing %.4f outside [%.3f, %.2f]",
			ErrInvalidParameter, g.Spacing, MinGridSpacing, MaxGridSpacing)
	}
	if g.Levels < MinGridLevels || g.Levels > MaxGridLevels {
		return fmt.Errorf("%w: levels %d outside [%d, %d]",
			ErrInvalidParameter, g.Levels, MinGridLevels, MaxGridLevels)
	}
	if g.SizePerLevel <= 0 {
		return fmt.Errorf("%w: size per level must be positive", ErrInvalidParameter)
	}
	if g.CenterPrice <= 0 {
		return fmt.Errorf("%w: center price must be positive", ErrInvalidParameter)
	}
	return nil
}

// BuyPrice returns the price of buy level i (1-based, below center).
func (g *GridStrategy) BuyPrice(i int) float64 {
	return g.CenterPrice * (1 - g.Spacing*float64(i))
}

// SellPrice returns the price of sell level i (1-based, above center).
func (g *GridStrategy) SellPrice(i int) float64 {
	return g.CenterPrice * (1 + g.Spacing*float64(i))
}

// RangeLow and RangeHigh are the outermost grid prices.
func (g *GridStrategy) RangeLow() float64  { return g.BuyPrice(g.Levels) }
func (g *GridStrategy) RangeHigh() float64 { return g.SellPrice(g.Levels) }

// GridOrder is one limit order belonging to a grid. There is exactly one
// order per (grid, side, level index).
type GridOrder struct {
	GridID     string      `json:"gridId"`
	Pair       string      `json:"pair"`
	Side       OrderSide   `json:"side"`
	LevelIndex int         `json:"levelIndex"`
	Price      float64     `json:"price"`
	Size       float64     `json:"size"`
	Status     OrderStatus `json:"status"`
	OrderRef   string      `json:"orderRef"`
	TxRef      string      `json:"txRef"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// OrderReceipt is the ledger's acknowledgement of a submitted order.
type OrderReceipt struct {
	OrderRef string `json:"orderId"`
	TxRef    string `json:"txHash"`
}

// OrderState is the ledger's view of an outstanding order.
type OrderState struct {
	Active        bool    `json:"isActive"`
	FilledSize    float64 `json:"filledSize"`
	RemainingSize float64 `json:"remainingSize"`
}

// GridPerformance aggregates the observed state of a running grid.
type GridPerformance struct {
	Pair                string
	RuntimeHours        float64
	TotalPlaced         int
	ActiveOrders        int
	FilledOrders        int
	FillRate            float64
	TotalVolume         float64
	TotalRebates        float64
	HourlyRebateRate    float64
	CurrentCenterPrice  float64
	OriginalCenterPrice float64
}
