package main

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "jobbalance",
		Version: version,
		Usage:   "Pick which task runs the next job.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML or YAML config file",
				Sources: cli.EnvVars("JOBBALANCE_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("JOBBALANCE_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			algorithmsCmd(),
			pickCmd(),
			registerCmd(),
		},
	}
}
