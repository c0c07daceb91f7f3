package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/acastano/gridvault/models"
)

func TestPaperOrderLifecycle(t *testing.T) {
	paperService := NewPaperService()
	ctx := context.Background()

	price, err := paperService.GetPrice(ctx, "APT/USDT")
	assert.NoError(t, err)
	assert.Greater(t, price, 0.0)

	// A buy far above the price crosses immediately on the next tick.
	receipt, err := paperService.SubmitOrder(ctx, "APT/USDT", models.OrderSideBuy, 5, price*2)
	assert.NoError(t, err)
	assert.NotEmpty(t, receipt.OrderRef)

	state, err := paperService.QueryOrderStatus(ctx, "APT/USDT", receipt.OrderRef)
	assert.NoError(t, err)
	assert.False(t, state.Active)
	assert.Equal(t, 5.0, state.FilledSize)

	// A buy far below stays resting and can be cancelled.
	resting, err := paperService.SubmitOrder(ctx, "APT/USDT", models.OrderSideBuy, 5, price/100)
	assert.NoError(t, err)
	assert.NoError(t, paperService.CancelOrder(ctx, "APT/USDT", resting.OrderRef))

	state, err = paperService.QueryOrderStatus(ctx, "APT/USDT", resting.OrderRef)
	assert.NoError(t, err)
	assert.False(t, state.Active)
	assert.Equal(t, 0.0, state.FilledSize)

	err = paperService.CancelOrder(ctx, "APT/USDT", "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPaperRejectsBadOrders(t *testing.T) {
	paperService := NewPaperService()

	_, err := paperService.SubmitOrder(context.Background(), "APT/USDT", models.OrderSideSell, 0, 10)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestPaperHistoryEndsAtCurrentPrice(t *testing.T) {
	paperService := NewPaperService()
	ctx := context.Background()

	history, err := paperService.GetPriceHistory(ctx, "APT/USDT", 24)
	assert.NoError(t, err)
	assert.Len(t, history, 24)

	price, err := paperService.GetPrice(ctx, "APT/USDT")
	assert.NoError(t, err)

	// One tick moves at most ~1%; the series must join up with the walk.
	assert.InDelta(t, price, history[len(history)-1].Price, price*0.05)

	book, err := paperService.GetOrderBook(ctx, "APT/USDT")
	assert.NoError(t, err)
	assert.Len(t, book.Bids, 10)
	assert.Len(t, book.Asks, 10)
	assert.False(t, book.IsEmpty())
}
