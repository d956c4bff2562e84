package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"cronloop/internal/app"
)

func main() {
	cliApp := &cli.App{
		Name:  "cronloop",
		Usage: "Run a cron pattern schedule and journal every matched moment",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "preview",
				Usage: "print the next `N` moments of CRON_PATTERN and exit",
			},
			&cli.IntFlag{
				Name:  "history",
				Usage: "print the last `N` rows of the journal at JOURNAL_PATH and exit",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := app.New()
			if err != nil {
				return cli.Exit("Failed to start: "+err.Error(), 1)
			}
			defer func() { _ = application.Close() }()

			switch {
			case c.Int("preview") > 0:
				return application.Preview(c.Int("preview"))
			case c.Int("history") > 0:
				return application.History(c.Context, c.Int("history"))
			default:
				return application.Run(c.Context)
			}
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
