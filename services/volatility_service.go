package services

import (
	"math"

	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/models"
)

const (
	// BaseSpacing is the grid spacing at reference volatility.
	BaseSpacing = 0.002
	// ReferenceVolatility is the 2% annualized-24h volatility the spacing
	// formula is anchored to, and the fallback when history is too short.
	ReferenceVolatility = 0.02
	// MinVolatilitySamples is the preferred minimum of hourly prices.
	MinVolatilitySamples = 12

	// BaselineDepth is the notional depth (quote units within ±2% of mid)
	// that maps to a neutral liquidity factor of 1.0.
	BaselineDepth      = 100000.0
	DepthWindowPct     = 0.02
	MinLiquidityFactor = 0.5
	MaxLiquidityFactor = 2.0
)

// VolatilityService derives grid parameters from price history and order
// book snapshots. All methods are pure: bad inputs degrade to the fallback
// constants instead of erroring.
type VolatilityService struct{}

func NewVolatilityService() *VolatilityService {
	return &VolatilityService{}
}

// AnnualizedVolatility is the sample stdev of hourly simple returns scaled
// by √24. Fewer than MinVolatilitySamples prices yields the 0.02 fallback.
func (volatilityService *VolatilityService) AnnualizedVolatility(history []models.PricePoint) float64 {
	if len(history) < MinVolatilitySamples {
		return ReferenceVolatility
	}

	prices := make([]float64, 0, len(history))
	for _, point := range history {
		prices = append(prices, point.Price)
	}

	returns := helpers.SimpleReturns(prices)
	if len(returns) < 2 {
		return ReferenceVolatility
	}

	stdev := helpers.StdDev(returns, helpers.Mean(returns))
	return stdev * math.Sqrt(24)
}

// OptimalSpacing scales the base spacing linearly with volatility and
// clamps to the allowed grid range.
func (volatilityService *VolatilityService) OptimalSpacing(volatility float64) float64 {
	if volatility <= 0 {
		return BaseSpacing
	}
	spacing := BaseSpacing * (volatility / ReferenceVolatility)
	return helpers.Clamp(spacing, models.MinGridSpacing, models.MaxGridSpacing)
}

// LiquidityFactor compares book depth near mid against the baseline.
// An empty book is neutral.
func (volatilityService *VolatilityService) LiquidityFactor(book models.OrderBook, midPrice float64) float64 {
	if book.IsEmpty() || midPrice <= 0 {
		return 1.0
	}

	depth := book.NotionalDepthWithin(midPrice, DepthWindowPct)
	return helpers.Clamp(depth/BaselineDepth, MinLiquidityFactor, MaxLiquidityFactor)
}
