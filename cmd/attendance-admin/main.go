package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var flagTimezone = &cli.StringFlag{
	Name:  "timezone",
	Value: "Asia/Kolkata",
	Usage: "Zone used for allowed hours and weekdays",
}

func main() {
	app := &cli.App{
		Name:  "attendance-admin",
		Usage: "operate the placement attendance engine",
		Commands: []*cli.Command{
			distanceCommand,
			evaluateCommand,
			holidaysCommand,
			tokenCommand,
			reportCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
