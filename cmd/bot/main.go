package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "transferbot",
		Usage: "Announce player transfers from community feeds in a Telegram channel",
		Description: `Polls each configured transfer feed on an interval and posts
		every new transfer to the configured channel once per id.

		Secrets can be kept out of the config file:

		TRANSFERBOT_TOKEN, TRANSFERBOT_CHANNEL_ID, TRANSFERBOT_STATE_FILE
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./config.json",
				Usage:   "config file (.json, .yaml or .toml)",
				EnvVars: []string{"TRANSFERBOT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			checkCmd(),
			stateCmd(),
			pollCmd(),
		},
		Action: runAction,
	}
}
