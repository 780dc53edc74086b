package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "docflow",
		Usage: "Document approval workflow service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-driver",
				Usage:   "Database driver (mysql, sqlite3)",
				Value:   "mysql",
				Sources: cli.EnvVars("DB_DRIVER"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection url",
				Required: true,
				Sources:  cli.EnvVars("DB_URL"),
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Catalog YAML file, the built-in catalog is used when empty",
				Sources: cli.EnvVars("CATALOG_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newMigrateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}
