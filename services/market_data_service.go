package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
)

// PriceCache holds provider answers for a short TTL so the 5-minute health
// loop does not hammer the free price APIs.
type PriceCache struct {
	mutex   sync.RWMutex
	ttl     time.Duration
	entries map[string]priceCacheEntry
}

type priceCacheEntry struct {
	price    float64
	cachedAt time.Time
}

func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		entries: make(map[string]priceCacheEntry),
	}
}

func (priceCache *PriceCache) Get(pair string) (float64, bool) {
	priceCache.mutex.RLock()
	defer priceCache.mutex.RUnlock()

	entry, ok := priceCache.entries[pair]
	if !ok || time.Since(entry.cachedAt) > priceCache.ttl {
		return 0, false
	}
	return entry.price, true
}

func (priceCache *PriceCache) Put(pair string, price float64) {
	priceCache.mutex.Lock()
	defer priceCache.mutex.Unlock()
	priceCache.entries[pair] = priceCacheEntry{price: price, cachedAt: time.Now()}
}

// MarketDataService fans a query across ranked providers and answers from
// the first one that responds.
type MarketDataService struct {
	providers []interfaces.MarketDataProvider
	cache     *PriceCache
}

func NewMarketDataService(providers ...interfaces.MarketDataProvider) *MarketDataService {
	return &MarketDataService{
		providers: providers,
		cache:     NewPriceCache(30 * time.Second),
	}
}

func (marketDataService *MarketDataService) Name() string {
	return "ranked"
}

func (marketDataService *MarketDataService) GetPrice(ctx context.Context, pair string) (float64, error) {
	if price, ok := marketDataService.cache.Get(pair); ok {
		return price, nil
	}

	var lastErr error
	for _, provider := range marketDataService.providers {
		price, err := provider.GetPrice(ctx, pair)
		if err != nil {
			helpers.Logger.Warnln(fmt.Sprintf("market data: %s price via %s failed: %v", pair, provider.Name(), err))
			lastErr = err
			continue
		}
		marketDataService.cache.Put(pair, price)
		return price, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no providers configured", models.ErrConfiguration)
	}
	return 0, fmt.Errorf("all providers failed for %s: %w", pair, lastErr)
}

func (marketDataService *MarketDataService) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	var lastErr error
	for _, provider := range marketDataService.providers {
		history, err := provider.GetPriceHistory(ctx, pair, hours)
		if err != nil {
			helpers.Logger.Warnln(fmt.Sprintf("market data: %s history via %s failed: %v", pair, provider.Name(), err))
			lastErr = err
			continue
		}
		return history, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no providers configured", models.ErrConfiguration)
	}
	return nil, fmt.Errorf("all providers failed for %s: %w", pair, lastErr)
}
