package bot

import (
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	botservices "gitlab.com/acastano/gridvault/bot/services"
	"gitlab.com/acastano/gridvault/database"
	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/providers/aptos"
	"gitlab.com/acastano/gridvault/providers/binance"
	"gitlab.com/acastano/gridvault/providers/coingecko"
	"gitlab.com/acastano/gridvault/providers/paper"
	"gitlab.com/acastano/gridvault/services"
)

type Bot struct {
}

func init() {
	cwd, _ := os.Getwd()
	err := godotenv.Load(cwd + "/conf.env")
	if err != nil {
		log.Warnln("No conf.env file found, relying on environment", err)
	}
}

// rankedProviders builds the reference-price fallback chain from the
// priceProviders env var (default "binance,coingecko").
func rankedProviders() []interfaces.MarketDataProvider {
	order := os.Getenv("priceProviders")
	if order == "" {
		order = "binance,coingecko"
	}

	var providers []interfaces.MarketDataProvider
	for _, name := range strings.Split(order, ",") {
		switch strings.TrimSpace(name) {
		case "binance":
			providers = append(providers, binance.NewBinanceService())
		case "coingecko":
			providers = append(providers, coingecko.NewCoinGeckoService())
		default:
			helpers.Logger.Warnln("unknown price provider ignored:", name)
		}
	}
	return providers
}

func (b *Bot) Run(c *cli.Context) error {
	helpers.Logger.Infoln("🖖🏻 GridVault started")

	pairsString := c.String("pairs")
	if pairsString == "" {
		pairsString = os.Getenv("pairs")
	}
	pairs := strings.Split(pairsString, ",")
	if pairs[0] == "" {
		helpers.Logger.Fatalln("error: couldn't initialize bot. No pairs set")
	}

	databaseService, err := database.NewDBService(os.Getenv("databaseHost"), os.Getenv("databasePort"),
		os.Getenv("databaseName"), os.Getenv("databaseUser"), os.Getenv("databasePassword"))
	if err != nil {
		panic(err)
	}

	marketDataService := services.NewMarketDataService(rankedProviders()...)

	var ledger interfaces.LedgerService
	paperTrading, _ := strconv.ParseBool(os.Getenv("paperTrading"))
	if paperTrading || c.Bool("paper") {
		ledger = paper.NewPaperService()
		helpers.Logger.Infoln("paper trading mode: synthetic ledger in use")
	} else {
		aptosService, err := aptos.NewAptosService(marketDataService)
		if err != nil {
			helpers.Logger.Fatalln(err)
		}
		ledger = aptosService
	}

	volatilityService := services.NewVolatilityService()
	allocator := services.NewCapitalAllocator(ledger, volatilityService)
	orderLedger := services.NewOrderLedgerService(databaseService)
	if err := orderLedger.Restore(); err != nil {
		helpers.Logger.Warnln("could not restore grids from storage:", err)
	}

	gridService := services.NewGridService(ledger, orderLedger, volatilityService, allocator)
	analytics := services.NewVaultAnalyticsService(databaseService, marketDataService)
	distributionService := services.NewProfitDistributionService(databaseService)

	engine := NewEngine(ledger, orderLedger, gridService, analytics, databaseService, pairs)
	engine.Start()
	defer engine.Stop()

	telegramEnabled, _ := strconv.ParseBool(os.Getenv("telegramCommands"))
	if telegramEnabled {
		telegramService, err := botservices.NewTelegramService(gridService, distributionService, analytics)
		if err != nil {
			helpers.Logger.Fatalln(err)
		}
		go telegramService.Start()
		defer telegramService.Stop()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	helpers.Logger.Infoln("shutdown signal received, stopping loops")
	return nil
}
