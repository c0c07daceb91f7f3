package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/models"
	"gitlab.com/acastano/gridvault/services"
)

// TelegramService is the chat command surface. Every handler maps a
// command onto one engine operation and replies with its status/message.
type TelegramService struct {
	bot                 *tb.Bot
	gridService         *services.GridService
	distributionService *services.ProfitDistributionService
	analytics           *services.VaultAnalyticsService
}

func NewTelegramService(gridService *services.GridService,
	distributionService *services.ProfitDistributionService,
	analytics *services.VaultAnalyticsService) (*TelegramService, error) {

	token := os.Getenv("telegramBotToken")
	if token == "" {
		return nil, fmt.Errorf("%w: telegramBotToken not set", models.ErrConfiguration)
	}

	bot, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	return &TelegramService{
		bot:                 bot,
		gridService:         gridService,
		distributionService: distributionService,
		analytics:           analytics,
	}, nil
}

func (telegramService *TelegramService) Start() {
	telegramService.bot.Handle("/startgrid", telegramService.handleStartGrid)
	telegramService.bot.Handle("/stopgrid", telegramService.handleStopGrid)
	telegramService.bot.Handle("/gridsummary", telegramService.handleGridSummary)
	telegramService.bot.Handle("/autoadjust", telegramService.handleAutoAdjust)
	telegramService.bot.Handle("/distribute", telegramService.handleDistribute)
	telegramService.bot.Handle("/performance", telegramService.handlePerformance)
	telegramService.bot.Handle("/deposit", telegramService.handleDeposit)
	telegramService.bot.Handle("/withdraw", telegramService.handleWithdraw)

	helpers.Logger.Infoln("telegram: command surface online")
	telegramService.bot.Start()
}

func (telegramService *TelegramService) Stop() {
	telegramService.bot.Stop()
}

func (telegramService *TelegramService) reply(m *tb.Message, result models.OperationResult) {
	prefix := "ℹ️"
	switch result.Status {
	case models.StatusSuccess:
		prefix = "✅"
	case models.StatusError:
		prefix = "❌"
	}
	_, err := telegramService.bot.Send(m.Sender, prefix+" "+result.Message)
	if err != nil {
		helpers.Logger.Errorln(fmt.Sprintf("telegram: reply failed: %v", err))
	}
}

// /startgrid APT/USDT 10 0.005 [budget]
func (telegramService *TelegramService) handleStartGrid(m *tb.Message) {
	args := strings.Fields(m.Payload)
	if len(args) < 3 {
		telegramService.reply(m, models.ErrorResult("usage: /startgrid <pair> <levels> <spacing> [budget]"))
		return
	}

	levels, err := strconv.Atoi(args[1])
	if err != nil {
		telegramService.reply(m, models.ErrorResult("bad levels %q", args[1]))
		return
	}
	spacing, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		telegramService.reply(m, models.ErrorResult("bad spacing %q", args[2]))
		return
	}
	budget := 0.0
	if len(args) > 3 {
		budget, err = strconv.ParseFloat(args[3], 64)
		if err != nil {
			telegramService.reply(m, models.ErrorResult("bad budget %q", args[3]))
			return
		}
	}

	telegramService.reply(m, telegramService.gridService.StartGrid(context.Background(), args[0], levels, spacing, 0, budget))
}

// /stopgrid APT/USDT
func (telegramService *TelegramService) handleStopGrid(m *tb.Message) {
	pair := strings.TrimSpace(m.Payload)
	if pair == "" {
		telegramService.reply(m, models.ErrorResult("usage: /stopgrid <pair>"))
		return
	}
	telegramService.reply(m, telegramService.gridService.StopGrid(context.Background(), pair))
}

func (telegramService *TelegramService) handleGridSummary(m *tb.Message) {
	telegramService.reply(m, telegramService.gridService.Summary(context.Background()))
}

// /autoadjust APT/USDT
func (telegramService *TelegramService) handleAutoAdjust(m *tb.Message) {
	pair := strings.TrimSpace(m.Payload)
	if pair == "" {
		telegramService.reply(m, models.ErrorResult("usage: /autoadjust <pair>"))
		return
	}
	telegramService.reply(m, telegramService.gridService.AutoAdjust(context.Background(), pair))
}

// /distribute LOYALTY_TIER 110.0
func (telegramService *TelegramService) handleDistribute(m *tb.Message) {
	args := strings.Fields(m.Payload)
	if len(args) < 2 {
		telegramService.reply(m, models.ErrorResult("usage: /distribute <PRO_RATA|TIME_WEIGHTED|LOYALTY_TIER> <pool>"))
		return
	}

	pool, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		telegramService.reply(m, models.ErrorResult("bad pool %q", args[1]))
		return
	}

	_, result := telegramService.distributionService.Distribute(context.Background(),
		services.DistributionPolicy(strings.ToUpper(args[0])), pool, time.Now())
	telegramService.reply(m, result)
}

func (telegramService *TelegramService) handlePerformance(m *tb.Message) {
	snapshot, err := telegramService.analytics.LatestSnapshot()
	if err != nil {
		telegramService.reply(m, models.ErrorResult("no performance data: %v", err))
		return
	}
	telegramService.reply(m, models.SuccessResult(
		"%s: value %.2f | daily %.2f%% weekly %.2f%% monthly %.2f%% | sharpe %.2f | maxDD %.2f%% | win %.1f%% | best %s",
		snapshot.Date, snapshot.TotalValue, snapshot.DailyReturn*100, snapshot.WeeklyReturn*100,
		snapshot.MonthlyReturn*100, snapshot.SharpeRatio, snapshot.MaxDrawdown*100,
		snapshot.WinRate*100, snapshot.BestAsset))
}

// /deposit alice 1000 [vaultValue]
func (telegramService *TelegramService) handleDeposit(m *tb.Message) {
	args := strings.Fields(m.Payload)
	if len(args) < 2 {
		telegramService.reply(m, models.ErrorResult("usage: /deposit <participant> <amount> [vaultValue]"))
		return
	}

	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		telegramService.reply(m, models.ErrorResult("bad amount %q", args[1]))
		return
	}
	vaultValue := 0.0
	if len(args) > 2 {
		vaultValue, _ = strconv.ParseFloat(args[2], 64)
	}

	telegramService.reply(m, telegramService.distributionService.RecordDeposit(args[0], amount, vaultValue, time.Now()))
}

// /withdraw alice 500
func (telegramService *TelegramService) handleWithdraw(m *tb.Message) {
	args := strings.Fields(m.Payload)
	if len(args) < 2 {
		telegramService.reply(m, models.ErrorResult("usage: /withdraw <participant> <amount>"))
		return
	}

	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		telegramService.reply(m, models.ErrorResult("bad amount %q", args[1]))
		return
	}

	telegramService.reply(m, telegramService.distributionService.RecordWithdrawal(args[0], amount))
}
