package aptos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
	"golang.org/x/time/rate"
)

const octasPerCoin = 1e8

// AptosService talks to an Aptos fullnode for reads and to a signing
// gateway for order submission. The gateway owns the account keys; this
// process never sees them.
type AptosService struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	marketData interfaces.MarketDataProvider

	nodeURL         string
	gatewayURL      string
	accountAddress  string
	contractAddress string
}

// NewAptosService wires the fullnode client. marketData backs
// GetPriceHistory, which fullnodes do not serve.
func NewAptosService(marketData interfaces.MarketDataProvider) (*AptosService, error) {
	nodeURL := os.Getenv("aptosNodeURL")
	if nodeURL == "" {
		return nil, fmt.Errorf("%w: aptosNodeURL not set", models.ErrConfiguration)
	}
	gatewayURL := os.Getenv("aptosGatewayURL")
	if gatewayURL == "" {
		return nil, fmt.Errorf("%w: aptosGatewayURL not set", models.ErrConfiguration)
	}
	accountAddress := os.Getenv("aptosAccountAddress")
	if accountAddress == "" {
		return nil, fmt.Errorf("%w: aptosAccountAddress not set", models.ErrConfiguration)
	}
	contractAddress := os.Getenv("aptosContractAddress")
	if contractAddress == "" {
		return nil, fmt.Errorf("%w: aptosContractAddress not set", models.ErrConfiguration)
	}

	return &AptosService{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		limiter:         rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		marketData:      marketData,
		nodeURL:         strings.TrimSuffix(nodeURL, "/"),
		gatewayURL:      strings.TrimSuffix(gatewayURL, "/"),
		accountAddress:  accountAddress,
		contractAddress: contractAddress,
	}, nil
}

func init() {
	cwd, _ := os.Getwd()
	dir := os.Getenv("CONF_FILE")
	if dir == "" {
		dir = "/conf.env"
	}
	_ = godotenv.Load(cwd + dir)
}

var coinTypes = map[string]string{
	"APT":  "0x1::aptos_coin::AptosCoin",
	"USDT": "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDT",
	"USDC": "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDC",
}

func coinType(asset string) (string, error) {
	coin, ok := coinTypes[asset]
	if !ok {
		return "", fmt.Errorf("%w: no coin type for %s", models.ErrNotFound, asset)
	}
	return coin, nil
}

func (aptosService *AptosService) GetBalance(ctx context.Context, asset string) (float64, error) {
	coin, err := coinType(asset)
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/resource/0x1::coin::CoinStore<%s>",
		aptosService.nodeURL, aptosService.accountAddress, coin)

	var resource struct {
		Data struct {
			Coin struct {
				Value string `json:"value"`
			} `json:"coin"`
		} `json:"data"`
	}
	if err := aptosService.getJSON(ctx, endpoint, &resource); err != nil {
		return 0, err
	}

	octas, err := strconv.ParseFloat(resource.Data.Coin.Value, 64)
	if err != nil {
		return 0, err
	}
	return octas / octasPerCoin, nil
}

// GetPrice derives the pair price from the DEX pool reserves.
func (aptosService *AptosService) GetPrice(ctx context.Context, pair string) (float64, error) {
	baseCoin, quoteCoin, err := pairCoins(pair)
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/resource/%s::swap::TokenPairReserve<%s,%s>",
		aptosService.nodeURL, aptosService.contractAddress, aptosService.contractAddress, baseCoin, quoteCoin)

	var resource struct {
		Data struct {
			ReserveX string `json:"reserve_x"`
			ReserveY string `json:"reserve_y"`
		} `json:"data"`
	}
	if err := aptosService.getJSON(ctx, endpoint, &resource); err != nil {
		return 0, err
	}

	reserveX, err := strconv.ParseFloat(resource.Data.ReserveX, 64)
	if err != nil {
		return 0, err
	}
	reserveY, err := strconv.ParseFloat(resource.Data.ReserveY, 64)
	if err != nil {
		return 0, err
	}
	if reserveX == 0 {
		return 0, fmt.Errorf("%w: empty pool for %s", models.ErrInsufficientLiquidity, pair)
	}
	return reserveY / reserveX, nil
}

func (aptosService *AptosService) GetPriceHistory(ctx context.Context, pair string, hours int) ([]models.PricePoint, error) {
	return aptosService.marketData.GetPriceHistory(ctx, pair, hours)
}

func (aptosService *AptosService) GetOrderBook(ctx context.Context, pair string) (models.OrderBook, error) {
	baseCoin, quoteCoin, err := pairCoins(pair)
	if err != nil {
		return models.OrderBook{}, err
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/resource/%s::market::OrderBook<%s,%s>",
		aptosService.nodeURL, aptosService.contractAddress, aptosService.contractAddress, baseCoin, quoteCoin)

	var resource struct {
		Data struct {
			Bids []bookEntry `json:"bids"`
			Asks []bookEntry `json:"asks"`
		} `json:"data"`
	}
	if err := aptosService.getJSON(ctx, endpoint, &resource); err != nil {
		return models.OrderBook{}, err
	}

	book := models.OrderBook{}
	for _, entry := range resource.Data.Bids {
		book.Bids = append(book.Bids, entry.toLevel())
	}
	for _, entry := range resource.Data.Asks {
		book.Asks = append(book.Asks, entry.toLevel())
	}
	return book, nil
}

type bookEntry struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (entry bookEntry) toLevel() models.BookLevel {
	price, _ := strconv.ParseFloat(entry.Price, 64)
	size, _ := strconv.ParseFloat(entry.Size, 64)
	return models.BookLevel{Price: price / octasPerCoin, Size: size / octasPerCoin}
}

// SubmitOrder posts to the signing gateway, which builds, signs and submits
// the entry function call.
func (aptosService *AptosService) SubmitOrder(ctx context.Context, pair string, side models.OrderSide,
	size float64, price float64) (models.OrderReceipt, error) {

	payload := map[string]interface{}{
		"pair":  pair,
		"side":  string(side),
		"size":  size,
		"price": price,
	}

	var receipt models.OrderReceipt
	err := aptosService.postJSON(ctx, aptosService.gatewayURL+"/orders", payload, &receipt)
	if err != nil {
		return models.OrderReceipt{}, fmt.Errorf("%w: %v", models.ErrLedgerSubmission, err)
	}
	helpers.Logger.Debugln(fmt.Sprintf("aptos: order %s submitted, tx %s", receipt.OrderRef, receipt.TxRef))
	return receipt, nil
}

func (aptosService *AptosService) CancelOrder(ctx context.Context, pair string, orderRef string) error {
	payload := map[string]interface{}{
		"pair":    pair,
		"orderId": orderRef,
	}
	err := aptosService.postJSON(ctx, aptosService.gatewayURL+"/orders/cancel", payload, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrLedgerSubmission, err)
	}
	return nil
}

func (aptosService *AptosService) QueryOrderStatus(ctx context.Context, pair string, orderRef string) (models.OrderState, error) {
	endpoint := fmt.Sprintf("%s/orders/%s?pair=%s", aptosService.gatewayURL, orderRef, strings.ReplaceAll(pair, "/", "-"))

	var state struct {
		IsActive      bool   `json:"isActive"`
		FilledSize    string `json:"filledSize"`
		RemainingSize string `json:"remainingSize"`
	}
	if err := aptosService.getJSON(ctx, endpoint, &state); err != nil {
		return models.OrderState{}, err
	}

	filled, _ := strconv.ParseFloat(state.FilledSize, 64)
	remaining, _ := strconv.ParseFloat(state.RemainingSize, 64)
	return models.OrderState{
		Active:        state.IsActive,
		FilledSize:    filled / octasPerCoin,
		RemainingSize: remaining / octasPerCoin,
	}, nil
}

func (aptosService *AptosService) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := aptosService.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	res, err := aptosService.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", models.ErrNotFound, endpoint)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("aptos: unexpected status %d from %s", res.StatusCode, endpoint)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (aptosService *AptosService) postJSON(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	if err := aptosService.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := aptosService.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d from %s", res.StatusCode, endpoint)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func pairCoins(pair string) (string, string, error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: malformed pair %s", models.ErrInvalidParameter, pair)
	}
	baseCoin, err := coinType(parts[0])
	if err != nil {
		return "", "", err
	}
	quoteCoin, err := coinType(parts[1])
	if err != nil {
		return "", "", err
	}
	return baseCoin, quoteCoin, nil
}
