package services

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/acastano/gridvault/models"
)

// ledgerMock is a scriptable in-memory ledger for controller tests.
type ledgerMock struct {
	mutex     sync.Mutex
	prices    map[string]float64
	histories map[string][]models.PricePoint
	books     map[string]models.OrderBook
	balances  map[string]float64

	submitErr func(pair string, side models.OrderSide, price float64) error
	cancelErr func(orderRef string) error

	submitted []submittedOrder
	cancelled []string
	states    map[string]models.OrderState
	nextRef   int
}

type submittedOrder struct {
	pair     string
	side     models.OrderSide
	size     float64
	price    float64
	orderRef string
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{
		prices:    map[string]float64{},
		histories: map[string][]models.PricePoint{},
		books:     map[string]models.OrderBook{},
		balances:  map[string]float64{"USDT": 100000, "USDC": 100000, "APT": 10000},
		states:    map[string]models.OrderState{},
	}
}

func (mock *ledgerMock) GetBalance(ctx context.Context, asset string) (float64, error) {
	balance, ok := mock.balances[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrNotFound, asset)
	}
	return balance, nil
}

func (mock *ledgerMock) GetPrice(ctx context.Context, pair string) (float64, error) {
	price, ok := mock.prices[pair]
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrNotFound, pair)
	}
	return price, nil
}

func (mock *ledgerMock) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	return mock.histories[pair], nil
}

func (mock *ledgerMock) GetOrderBook(ctx context.Context, pair string) (models.OrderBook, error) {
	return mock.books[pair], nil
}

func (mock *ledgerMock) SubmitOrder(ctx context.Context, pair string, side models.OrderSide,
	size float64, price float64) (models.OrderReceipt, error) {

	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	if mock.submitErr != nil {
		if err := mock.submitErr(pair, side, price); err != nil {
			return models.OrderReceipt{}, err
		}
	}

	mock.nextRef++
	orderRef := fmt.Sprintf("order-%d", mock.nextRef)
	mock.submitted = append(mock.submitted, submittedOrder{
		pair: pair, side: side, size: size, price: price, orderRef: orderRef,
	})
	mock.states[orderRef] = models.OrderState{Active: true, RemainingSize: size}
	return models.OrderReceipt{OrderRef: orderRef, TxRef: "tx-" + orderRef}, nil
}

func (mock *ledgerMock) CancelOrder(ctx context.Context, pair string, orderRef string) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	if mock.cancelErr != nil {
		if err := mock.cancelErr(orderRef); err != nil {
			return err
		}
	}
	mock.cancelled = append(mock.cancelled, orderRef)
	mock.states[orderRef] = models.OrderState{}
	return nil
}

func (mock *ledgerMock) QueryOrderStatus(ctx context.Context, pair string, orderRef string) (models.OrderState, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	state, ok := mock.states[orderRef]
	if !ok {
		return models.OrderState{}, fmt.Errorf("%w: %s", models.ErrNotFound, orderRef)
	}
	return state, nil
}

func (mock *ledgerMock) fill(orderRef string, size float64) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.states[orderRef] = models.OrderState{Active: false, FilledSize: size}
}

// storeMock is an in-memory GridStore + VaultStore.
type storeMock struct {
	mutex         sync.Mutex
	grids         map[string]models.GridStrategy
	orders        map[string]models.GridOrder
	participants  map[string]models.VaultParticipant
	snapshots     map[string]models.PerformanceSnapshot
	benchmarks    map[string]models.BenchmarkComparison
	drawdowns     map[string]models.DrawdownEvent
	distributions []models.ProfitDistribution
	healthSamples []models.HealthSample

	failDistributionRun bool
}

func newStoreMock() *storeMock {
	return &storeMock{
		grids:        map[string]models.GridStrategy{},
		orders:       map[string]models.GridOrder{},
		participants: map[string]models.VaultParticipant{},
		snapshots:    map[string]models.PerformanceSnapshot{},
		benchmarks:   map[string]models.BenchmarkComparison{},
		drawdowns:    map[string]models.DrawdownEvent{},
	}
}

func (mock *storeMock) SaveGrid(grid *models.GridStrategy) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.grids[grid.ID] = *grid
	return nil
}

func (mock *storeMock) SaveGridOrder(order *models.GridOrder) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	key := fmt.Sprintf("%s/%s/%d", order.GridID, order.Side, order.LevelIndex)
	mock.orders[key] = *order
	return nil
}

func (mock *storeMock) LoadActiveGrids() ([]models.GridStrategy, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	var grids []models.GridStrategy
	for _, grid := range mock.grids {
		if grid.Status == models.GridStatusActive {
			grids = append(grids, grid)
		}
	}
	return grids, nil
}

func (mock *storeMock) LoadFilledOrders() ([]models.GridOrder, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	var orders []models.GridOrder
	for _, order := range mock.orders {
		if order.Status == models.OrderStatusFilled {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (mock *storeMock) SaveParticipant(participant *models.VaultParticipant) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.participants[participant.ParticipantID] = *participant
	return nil
}

func (mock *storeMock) LoadParticipants() ([]models.VaultParticipant, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	var participants []models.VaultParticipant
	for _, participant := range mock.participants {
		participants = append(participants, participant)
	}
	return participants, nil
}

func (mock *storeMock) SaveSnapshot(snapshot *models.PerformanceSnapshot) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.snapshots[snapshot.Date] = *snapshot
	return nil
}

func (mock *storeMock) LoadSnapshots(limit int) ([]models.PerformanceSnapshot, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	var snapshots []models.PerformanceSnapshot
	for _, snapshot := range mock.snapshots {
		snapshots = append(snapshots, snapshot)
	}
	if limit > 0 && len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}
	return snapshots, nil
}

func (mock *storeMock) SaveBenchmark(comparison *models.BenchmarkComparison) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.benchmarks[comparison.Date] = *comparison
	return nil
}

func (mock *storeMock) SaveDrawdownEvent(event *models.DrawdownEvent) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.drawdowns[event.StartDate] = *event
	return nil
}

func (mock *storeMock) SaveDistributionRun(runID string, rows []models.ProfitDistribution,
	cumulativeUpdates map[string]float64) error {

	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	if mock.failDistributionRun {
		return fmt.Errorf("storage unavailable")
	}

	mock.distributions = append(mock.distributions, rows...)
	for participantID, cumulative := range cumulativeUpdates {
		participant := mock.participants[participantID]
		participant.CumulativeProfit = cumulative
		mock.participants[participantID] = participant
	}
	return nil
}

func (mock *storeMock) LoadDistributions(participantID string) ([]models.ProfitDistribution, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	var rows []models.ProfitDistribution
	for _, row := range mock.distributions {
		if row.ParticipantID == participantID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (mock *storeMock) SaveHealthSample(sample *models.HealthSample) error {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.healthSamples = append(mock.healthSamples, *sample)
	return nil
}

func (mock *storeMock) LoadHealthSamples(limit int) ([]models.HealthSample, error) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()

	samples := mock.healthSamples
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return append([]models.HealthSample(nil), samples...), nil
}

// marketDataMock serves canned histories for analytics tests.
type marketDataMock struct {
	histories map[string][]models.PricePoint
}

func (mock *marketDataMock) Name() string { return "mock" }

func (mock *marketDataMock) GetPrice(ctx context.Context, pair string) (float64, error) {
	history := mock.histories[pair]
	if len(history) == 0 {
		return 0, fmt.Errorf("%w: %s", models.ErrNotFound, pair)
	}
	return history[len(history)-1].Price, nil
}

func (mock *marketDataMock) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	history := mock.histories[pair]
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, pair)
	}
	return history, nil
}
