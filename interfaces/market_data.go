package interfaces

import (
	"context"

	"gitlab.com/acastano/gridvault/models"
)

// MarketDataProvider serves reference prices from an off-chain source.
// Providers are ranked; the market data service falls through the ranking
// until one answers.
type MarketDataProvider interface {
	Name() string
	GetPrice(ctx context.Context, pair string) (float64, error)
	GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error)
}
