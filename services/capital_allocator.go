package services

import (
	"context"
	"fmt"
	"math"

	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
)

// PairAllocation is the allocator's plan for one pair.
type PairAllocation struct {
	Pair         string
	Volatility   float64
	Allocation   float64
	Levels       int
	SizePerLevel float64
	Price        float64
}

// CapitalAllocator splits a capital budget across pairs by inverse
// volatility: calmer pairs get more capital, choppier pairs get more
// levels.
type CapitalAllocator struct {
	ledger            interfaces.LedgerService
	volatilityService *VolatilityService
}

func NewCapitalAllocator(ledger interfaces.LedgerService, volatilityService *VolatilityService) *CapitalAllocator {
	return &CapitalAllocator{
		ledger:            ledger,
		volatilityService: volatilityService,
	}
}

func (capitalAllocator *CapitalAllocator) Allocate(ctx context.Context, pairs []string,
	totalCapital float64, baseLevels int) ([]PairAllocation, error) {

	if totalCapital <= 0 {
		return nil, fmt.Errorf("%w: total capital must be positive", models.ErrInvalidParameter)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no pairs given", models.ErrInvalidParameter)
	}

	allocations := make([]PairAllocation, 0, len(pairs))
	weightSum := 0.0
	for _, pair := range pairs {
		history, err := capitalAllocator.ledger.GetPriceHistory(ctx, pair, 24)
		if err != nil {
			helpers.Logger.Warnln(fmt.Sprintf("allocator: no history for %s: %v", pair, err))
			history = nil
		}
		volatility := capitalAllocator.volatilityService.AnnualizedVolatility(history)

		price, err := capitalAllocator.ledger.GetPrice(ctx, pair)
		if err != nil {
			return nil, err
		}

		allocations = append(allocations, PairAllocation{
			Pair:       pair,
			Volatility: volatility,
			Price:      price,
		})
		if volatility > 0 {
			weightSum += 1 / volatility
		}
	}

	if weightSum == 0 {
		return nil, fmt.Errorf("%w: zero volatility across all pairs", models.ErrInvalidParameter)
	}

	for i := range allocations {
		allocation := &allocations[i]
		if allocation.Volatility <= 0 {
			continue
		}

		weight := 1 / allocation.Volatility
		allocation.Allocation = weight / weightSum * totalCapital
		allocation.Levels = int(helpers.Clamp(
			math.Round(float64(baseLevels)*(1+allocation.Volatility/ReferenceVolatility)),
			models.MinGridLevels, models.MaxGridLevels))
		allocation.SizePerLevel = allocation.Allocation /
			(float64(allocation.Levels) * allocation.Price * 2)
	}

	return allocations, nil
}
