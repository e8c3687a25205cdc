package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/swingfinder/festival-finder/internal/adapters/database"
	"github.com/swingfinder/festival-finder/internal/adapters/memory"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Load events from a JSON fixture file into the database",
		ArgsUsage: "<fixtures.json>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "truncate",
				Usage: "Remove existing events first",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("seed: fixture file argument is required")
			}
			events, err := memory.ReadFixtures(path)
			if err != nil {
				return err
			}

			cfg, client, err := connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			seeder := database.NewEventSeeder(client)
			if c.Bool("truncate") {
				if err := seeder.Truncate(ctx); err != nil {
					return err
				}
			}
			n, err := seeder.Seed(ctx, events)
			if err != nil {
				return err
			}
			notifyCatalogChange(ctx, cfg, n)
			fmt.Fprintf(c.Root().Writer, "Seeded %d events from %s\n", n, path)
			return nil
		},
	}
}
