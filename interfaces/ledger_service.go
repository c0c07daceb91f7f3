package interfaces

import (
	"context"

	"gitlab.com/acastano/gridvault/models"
)

// LedgerService is the on-chain venue the grids trade on: balance and
// market queries plus order submission, cancellation and status polling.
type LedgerService interface {
	GetBalance(ctx context.Context, asset string) (float64, error)
	GetPrice(ctx context.Context, pair string) (float64, error)
	GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error)
	GetOrderBook(ctx context.Context, pair string) (models.OrderBook, error)
	SubmitOrder(ctx context.Context, pair string, side models.OrderSide, size float64, price float64) (models.OrderReceipt, error)
	CancelOrder(ctx context.Context, pair string, orderRef string) error
	QueryOrderStatus(ctx context.Context, pair string, orderRef string) (models.OrderState, error)
}
