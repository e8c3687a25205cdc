package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
	apperrors "github.com/swingfinder/festival-finder/pkg/errors"
)

const searchAnalyticsTable = "search_analytics"

type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *SearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query, args, err := a.db.Insert(searchAnalyticsTable).
		Rows(goqu.Record{
			"id":           event.ID,
			"query":        event.Query,
			"city":         event.City,
			"country":      event.Country,
			"sort_by":      event.SortBy,
			"page":         event.Page,
			"result_count": event.ResultCount,
			"latency_ms":   event.LatencyMs,
			"created_at":   event.CreatedAt,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build search event insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return classify("failed to log search event", err)
	}
	return nil
}

func (a *SearchAnalyticsAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.From(searchAnalyticsTable).
		Select("id", "query", "city", "country", "sort_by", "page", "result_count", "latency_ms", "created_at").
		Where(goqu.Ex{"result_count": 0}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build zero result query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to get zero result queries", err)
	}
	defer rows.Close()

	events := make([]*entities.SearchEvent, 0)
	for rows.Next() {
		e := &entities.SearchEvent{}
		err := rows.Scan(
			&e.ID,
			&e.Query,
			&e.City,
			&e.Country,
			&e.SortBy,
			&e.Page,
			&e.ResultCount,
			&e.LatencyMs,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to read search events", err)
	}

	return events, nil
}
