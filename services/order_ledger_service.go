package services

import (
	"fmt"
	"sync"

	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
)

// OrderLedgerService is the authoritative in-memory index of grids and
// their orders. Writes are mirrored to the persistent store; a store
// failure is logged but never loses the in-memory record.
type OrderLedgerService struct {
	mutex  sync.RWMutex
	grids  map[string]*models.GridStrategy // keyed by pair
	orders map[string][]*models.GridOrder  // keyed by grid id
	store  interfaces.GridStore
}

func NewOrderLedgerService(store interfaces.GridStore) *OrderLedgerService {
	return &OrderLedgerService{
		grids:  make(map[string]*models.GridStrategy),
		orders: make(map[string][]*models.GridOrder),
		store:  store,
	}
}

func (orderLedger *OrderLedgerService) RegisterGrid(grid *models.GridStrategy) {
	orderLedger.mutex.Lock()
	defer orderLedger.mutex.Unlock()

	orderLedger.grids[grid.Pair] = grid
	if _, ok := orderLedger.orders[grid.ID]; !ok {
		orderLedger.orders[grid.ID] = nil
	}
	orderLedger.mirrorGrid(grid)
}

// TrackOrder indexes an order, replacing any previous order at the same
// (side, level) slot so a slot never holds two outstanding orders.
func (orderLedger *OrderLedgerService) TrackOrder(order *models.GridOrder) {
	orderLedger.mutex.Lock()
	defer orderLedger.mutex.Unlock()

	existing := orderLedger.orders[order.GridID]
	for i, tracked := range existing {
		if tracked.Side == order.Side && tracked.LevelIndex == order.LevelIndex {
			existing[i] = order
			orderLedger.mirrorOrder(order)
			return
		}
	}
	orderLedger.orders[order.GridID] = append(existing, order)
	orderLedger.mirrorOrder(order)
}

func (orderLedger *OrderLedgerService) UpdateOrderStatus(order *models.GridOrder, status models.OrderStatus) {
	orderLedger.mutex.Lock()
	defer orderLedger.mutex.Unlock()

	order.Status = status
	orderLedger.mirrorOrder(order)
}

func (orderLedger *OrderLedgerService) GridByPair(pair string) (*models.GridStrategy, bool) {
	orderLedger.mutex.RLock()
	defer orderLedger.mutex.RUnlock()

	grid, ok := orderLedger.grids[pair]
	return grid, ok
}

// Orders returns a snapshot copy of the grid's order list.
func (orderLedger *OrderLedgerService) Orders(gridID string) []*models.GridOrder {
	orderLedger.mutex.RLock()
	defer orderLedger.mutex.RUnlock()

	tracked := orderLedger.orders[gridID]
	snapshot := make([]*models.GridOrder, len(tracked))
	copy(snapshot, tracked)
	return snapshot
}

func (orderLedger *OrderLedgerService) ActivePairs() []string {
	orderLedger.mutex.RLock()
	defer orderLedger.mutex.RUnlock()

	var pairs []string
	for pair, grid := range orderLedger.grids {
		if grid.Status == models.GridStatusActive {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// RemoveGrid marks the grid stopped and drops it from the active index.
// The persistent record survives with its final status.
func (orderLedger *OrderLedgerService) RemoveGrid(pair string) {
	orderLedger.mutex.Lock()
	defer orderLedger.mutex.Unlock()

	grid, ok := orderLedger.grids[pair]
	if !ok {
		return
	}
	grid.Status = models.GridStatusStopped
	orderLedger.mirrorGrid(grid)
	delete(orderLedger.grids, pair)
	delete(orderLedger.orders, grid.ID)
}

// FilledOrders reads every persisted fill from the store. Stopping or
// replacing a grid drops its in-memory index, so fill history has to come
// from storage.
func (orderLedger *OrderLedgerService) FilledOrders() ([]models.GridOrder, error) {
	return orderLedger.store.LoadFilledOrders()
}

// Restore reloads active grids from the store on startup.
func (orderLedger *OrderLedgerService) Restore() error {
	grids, err := orderLedger.store.LoadActiveGrids()
	if err != nil {
		return err
	}

	orderLedger.mutex.Lock()
	defer orderLedger.mutex.Unlock()
	for i := range grids {
		grid := grids[i]
		orderLedger.grids[grid.Pair] = &grid
	}
	return nil
}

func (orderLedger *OrderLedgerService) mirrorGrid(grid *models.GridStrategy) {
	if err := orderLedger.store.SaveGrid(grid); err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("order ledger: persisting grid %s failed: %v", grid.ID, err))
	}
}

func (orderLedger *OrderLedgerService) mirrorOrder(order *models.GridOrder) {
	if err := orderLedger.store.SaveGridOrder(order); err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("order ledger: persisting order %s failed: %v", order.OrderRef, err))
	}
}
