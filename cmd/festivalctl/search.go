package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/swingfinder/festival-finder/internal/adapters/database"
	"github.com/swingfinder/festival-finder/internal/adapters/memory"
	"github.com/swingfinder/festival-finder/internal/application/services"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/domain/search"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search events and print one page of results",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Free-text query"},
			&cli.StringFlag{Name: "city", Usage: "City filter"},
			&cli.StringFlag{Name: "country", Usage: "Country filter"},
			&cli.StringFlag{Name: "sort-by", Usage: "relevance or date", Value: services.DefaultSortBy},
			&cli.StringFlag{Name: "sort-order", Usage: "asc or desc", Value: services.DefaultSortOrder},
			&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
			&cli.IntFlag{Name: "limit", Usage: "Page size", Value: search.DefaultLimit},
			&cli.StringFlag{Name: "fixtures", Usage: "Search a JSON fixture file instead of the database"},
			&cli.BoolFlag{Name: "json", Usage: "Print the response as JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var repo repositories.EventSearchRepository
			if path := c.String("fixtures"); path != "" {
				store, err := memory.LoadEventStore(path)
				if err != nil {
					return err
				}
				repo = store
			} else {
				_, client, err := connect(ctx)
				if err != nil {
					return err
				}
				defer client.Close()
				repo = database.NewEventSearchAdapter(client)
			}

			svc := services.NewEventSearchService(repo, nil, services.EventSearchConfig{})
			resp, err := svc.Search(ctx, services.SearchParams{
				Query:     c.String("query"),
				City:      c.String("city"),
				Country:   c.String("country"),
				SortBy:    c.String("sort-by"),
				SortOrder: c.String("sort-order"),
				Page:      int(c.Int("page")),
				Limit:     int(c.Int("limit")),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				enc := json.NewEncoder(c.Root().Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResults(c.Root().Writer, resp)
			return nil
		},
	}
}

func printResults(out io.Writer, resp *services.SearchResponse) {
	if resp.Total == 0 {
		fmt.Fprintln(out, "No events found")
		return
	}

	offset := (resp.Page - 1) * resp.Limit
	for i, r := range resp.Events {
		place := strings.Join(nonEmpty(r.City, r.Country), ", ")
		line := fmt.Sprintf("%d. [%d] %s", offset+i+1, r.ID, r.Name)
		if place != "" {
			line += " (" + place + ")"
		}
		if !r.FromDate.IsZero() {
			line += " " + r.FromDate.Format("2006-01-02")
		}
		if resp.Ordering.Ranked {
			line += fmt.Sprintf(" rank=%.1f", r.SearchRank)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "\nPage %d of %d, %d events total\n", resp.Page, resp.TotalPages, resp.Total)
}

func nonEmpty(values ...*string) []string {
	var out []string
	for _, v := range values {
		if v != nil && *v != "" {
			out = append(out, *v)
		}
	}
	return out
}
