package binance

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
	"gitlab.com/acastano/gridvault/models"
)

// BinanceService is the primary reference price provider. Pairs arrive in
// "APT/USDT" notation and are flattened to binance symbols.
type BinanceService struct {
	binanceClient *binance.Client
	apiKey        string
	apiSecret     string
}

func NewBinanceService() *BinanceService {
	binanceService := BinanceService{}
	binanceService.apiKey = os.Getenv("binanceAPIKey")
	binanceService.apiSecret = os.Getenv("binanceAPISecret")
	binanceService.binanceClient = binance.NewClient(binanceService.apiKey, binanceService.apiSecret)
	return &binanceService
}

func init() {
	cwd, _ := os.Getwd()
	dir := os.Getenv("CONF_FILE")
	if dir == "" {
		dir = "/conf.env"
	}
	_ = godotenv.Load(cwd + dir)
}

func (binanceService *BinanceService) Name() string {
	return "binance"
}

func (binanceService *BinanceService) GetPrice(ctx context.Context, pair string) (float64, error) {
	prices, err := binanceService.binanceClient.NewListPricesService().
		Symbol(binanceSymbol(pair)).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: no price for %s", models.ErrNotFound, pair)
	}
	return big.NewFromString(prices[0].Price).Float(), nil
}

// GetPriceHistory returns one close per hour, oldest first.
func (binanceService *BinanceService) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	klines, err := binanceService.binanceClient.NewKlinesService().
		Symbol(binanceSymbol(pair)).Interval("1h").Limit(hours).Do(ctx)
	if err != nil {
		return nil, err
	}

	var history []models.PricePoint
	for _, kline := range klines {
		candle := klineToCandle(kline)
		history = append(history, models.PricePoint{
			Time:  candle.Period.End,
			Price: candle.ClosePrice.Float(),
		})
	}
	return history, nil
}

func klineToCandle(kline *binance.Kline) *techan.Candle {
	period := techan.NewTimePeriod(time.Unix(kline.OpenTime/1000, 0), time.Hour)
	candle := techan.NewCandle(period)
	candle.OpenPrice = big.NewFromString(kline.Open)
	candle.ClosePrice = big.NewFromString(kline.Close)
	candle.MaxPrice = big.NewFromString(kline.High)
	candle.MinPrice = big.NewFromString(kline.Low)
	candle.Volume = big.NewFromString(kline.Volume)
	return candle
}

func binanceSymbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}
