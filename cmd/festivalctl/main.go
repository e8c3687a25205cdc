package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
	"github.com/swingfinder/festival-finder/internal/infrastructure/observability"
	"github.com/swingfinder/festival-finder/pkg/config"
	"github.com/swingfinder/festival-finder/pkg/secrets"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "festivalctl",
		Usage: "Operate the festival finder database and search",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			env := "production"
			if c.Bool("debug") {
				env = "development"
			}
			observability.InitLogger("festivalctl", env, os.Getenv("LOG_LEVEL"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			searchCommand(),
			seedCommand(),
			cacheCommand(),
		},
	}
}

// loadConfig reads configuration from the environment with any Vault
// overlay applied.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if _, err := secrets.LoadFromEnv(ctx); err != nil {
		return nil, fmt.Errorf("loading secrets: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// connect loads configuration and opens the pool
func connect(ctx context.Context) (*config.Config, *postgres.Client, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}
