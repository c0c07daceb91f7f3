package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/acastano/gridvault/models"
)

// PaperService is an in-memory ledger for dry runs: a seeded random walk
// for the price, a synthetic book around it, and orders that fill when the
// walk crosses their level.
type PaperService struct {
	mutex    sync.Mutex
	rng      *rand.Rand
	balances map[string]float64
	orders   map[string]*paperOrder
	price    float64
	lastTick time.Time
}

type paperOrder struct {
	pair   string
	side   models.OrderSide
	size   float64
	price  float64
	filled float64
	active bool
}

func NewPaperService() *PaperService {
	return &PaperService{
		rng: rand.New(rand.NewSource(42)),
		balances: map[string]float64{
			"APT":  10000.0,
			"USDT": 100000.0,
			"USDC": 100000.0,
		},
		orders:   make(map[string]*paperOrder),
		price:    10.0,
		lastTick: time.Now(),
	}
}

// tick advances the random walk once per call and settles crossed orders.
func (paperService *PaperService) tick() {
	paperService.price *= 1 + paperService.rng.NormFloat64()*0.001
	paperService.lastTick = time.Now()

	for _, order := range paperService.orders {
		if !order.active {
			continue
		}
		crossed := (order.side == models.OrderSideBuy && paperService.price <= order.price) ||
			(order.side == models.OrderSideSell && paperService.price >= order.price)
		if crossed {
			order.filled = order.size
			order.active = false
		}
	}
}

func (paperService *PaperService) GetBalance(ctx context.Context, asset string) (float64, error) {
	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	balance, ok := paperService.balances[asset]
	if !ok {
		return 0, fmt.Errorf("%w: no balance for %s", models.ErrNotFound, asset)
	}
	return balance, nil
}

func (paperService *PaperService) GetPrice(ctx context.Context, pair string) (float64, error) {
	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	paperService.tick()
	return paperService.price, nil
}

func (paperService *PaperService) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	// Walk backwards from the current price so history ends where the
	// live price starts.
	prices := make([]float64, hours)
	price := paperService.price
	for i := hours - 1; i >= 0; i-- {
		prices[i] = price
		price /= 1 + paperService.rng.NormFloat64()*0.005
	}

	now := time.Now()
	var history []models.PricePoint
	for i, p := range prices {
		history = append(history, models.PricePoint{
			Time:  now.Add(-time.Duration(hours-1-i) * time.Hour),
			Price: p,
		})
	}
	return history, nil
}

func (paperService *PaperService) GetOrderBook(ctx context.Context, pair string) (models.OrderBook, error) {
	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	book := models.OrderBook{}
	for i := 1; i <= 10; i++ {
		offset := 0.0005 * float64(i)
		size := 500 + 100*math.Abs(paperService.rng.NormFloat64())
		book.Bids = append(book.Bids, models.BookLevel{
			Price: paperService.price * (1 - offset),
			Size:  size,
		})
		book.Asks = append(book.Asks, models.BookLevel{
			Price: paperService.price * (1 + offset),
			Size:  size,
		})
	}
	return book, nil
}

func (paperService *PaperService) SubmitOrder(ctx context.Context, pair string, side models.OrderSide,
	size float64, price float64) (models.OrderReceipt, error) {

	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	if size <= 0 || price <= 0 {
		return models.OrderReceipt{}, fmt.Errorf("%w: size and price must be positive", models.ErrInvalidParameter)
	}

	orderRef := uuid.New().String()
	paperService.orders[orderRef] = &paperOrder{
		pair:   pair,
		side:   side,
		size:   size,
		price:  price,
		active: true,
	}

	return models.OrderReceipt{
		OrderRef: orderRef,
		TxRef:    "paper-" + uuid.New().String(),
	}, nil
}

func (paperService *PaperService) CancelOrder(ctx context.Context, pair string, orderRef string) error {
	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	order, ok := paperService.orders[orderRef]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, orderRef)
	}
	order.active = false
	return nil
}

func (paperService *PaperService) QueryOrderStatus(ctx context.Context, pair string, orderRef string) (models.OrderState, error) {
	paperService.mutex.Lock()
	defer paperService.mutex.Unlock()

	paperService.tick()
	order, ok := paperService.orders[orderRef]
	if !ok {
		return models.OrderState{}, fmt.Errorf("%w: order %s", models.ErrNotFound, orderRef)
	}

	return models.OrderState{
		Active:        order.active,
		FilledSize:    order.filled,
		RemainingSize: order.size - order.filled,
	}, nil
}
