package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded schema migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, client, err := connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			manager := postgres.NewMigrationManager(client)
			out := c.Root().Writer

			if c.Bool("status") {
				status, err := manager.Status(ctx)
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				for _, m := range status {
					state := "pending"
					if m.AppliedAt != nil {
						state = "applied " + m.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(out, "%03d_%-24s %s\n", m.Version, m.Name, state)
				}
				return nil
			}

			applied, err := manager.ApplyPending(ctx)
			if err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Schema is up to date")
				return nil
			}
			for _, m := range applied {
				fmt.Fprintf(out, "Applied %03d_%s\n", m.Version, m.Name)
			}
			return nil
		},
	}
}
