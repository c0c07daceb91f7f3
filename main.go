package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"gitlab.com/acastano/gridvault/bot"
)

func main() {
	b := bot.Bot{}

	app := &cli.App{
		Name:  "gridvault",
		Usage: "market-making grid bot with vault analytics and profit distribution",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pairs",
				Usage: "comma-separated pairs to trade, e.g. APT/USDT,APT/USDC",
			},
			&cli.BoolFlag{
				Name:  "paper",
				Usage: "run against the synthetic paper ledger",
			},
		},
		Action: b.Run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
