package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab.com/acastano/gridvault/models"
	"golang.org/x/time/rate"
)

const apiBaseURL = "https://api.coingecko.com/api/v3"

// Free tier allows ~10-30 calls/min. Stay well under.
var coinIDs = map[string]string{
	"APT":  "aptos",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"USDT": "tether",
	"USDC": "usd-coin",
}

// CoinGeckoService is the fallback reference price provider.
type CoinGeckoService struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCoinGeckoService() *CoinGeckoService {
	return &CoinGeckoService{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(6*time.Second), 1),
	}
}

func (coinGeckoService *CoinGeckoService) Name() string {
	return "coingecko"
}

func (coinGeckoService *CoinGeckoService) GetPrice(ctx context.Context, pair string) (float64, error) {
	coinID, err := pairToCoinID(pair)
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", apiBaseURL, url.QueryEscape(coinID))
	var response map[string]map[string]float64
	if err := coinGeckoService.getJSON(ctx, endpoint, &response); err != nil {
		return 0, err
	}

	price, ok := response[coinID]["usd"]
	if !ok || price == 0 {
		return 0, fmt.Errorf("%w: no price for %s", models.ErrNotFound, pair)
	}
	return price, nil
}

func (coinGeckoService *CoinGeckoService) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	coinID, err := pairToCoinID(pair)
	if err != nil {
		return nil, err
	}

	days := hours/24 + 1
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", apiBaseURL, coinID, days)
	var response struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := coinGeckoService.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	var history []models.PricePoint
	for _, point := range response.Prices {
		if len(point) < 2 {
			continue
		}
		sampleTime := time.Unix(int64(point[0])/1000, 0)
		if sampleTime.Before(cutoff) {
			continue
		}
		history = append(history, models.PricePoint{Time: sampleTime, Price: point[1]})
	}
	return history, nil
}

func (coinGeckoService *CoinGeckoService) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := coinGeckoService.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	res, err := coinGeckoService.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko: unexpected status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func pairToCoinID(pair string) (string, error) {
	base := strings.Split(pair, "/")[0]
	coinID, ok := coinIDs[base]
	if !ok {
		return "", fmt.Errorf("%w: no coingecko id for %s", models.ErrNotFound, base)
	}
	return coinID, nil
}
