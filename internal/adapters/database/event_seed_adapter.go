package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
)

// EventSeeder loads event fixtures into the events table. Production
// rows come from the ingestion pipeline; this exists for local
// development and integration tests.
type EventSeeder struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
}

// NewEventSeeder creates a new event seeder
func NewEventSeeder(client *postgres.Client) *EventSeeder {
	return &EventSeeder{
		client:  client,
		dialect: goqu.Dialect("postgres"),
	}
}

// Seed inserts events in one transaction and returns how many rows were
// written. Events with a zero ID get one from the sequence; others keep
// theirs and replace any existing row with the same ID.
func (s *EventSeeder) Seed(ctx context.Context, events []entities.Event) (int, error) {
	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return 0, classify("failed to begin seed transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for i := range events {
		query, args, err := s.insertQuery(&events[i], now)
		if err != nil {
			return 0, fmt.Errorf("building insert for %q: %w", events[i].Name, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, classify(fmt.Sprintf("failed to insert event %q", events[i].Name), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("failed to commit seed transaction", err)
	}
	return len(events), nil
}

// Truncate removes every event. Used to reset integration databases.
func (s *EventSeeder) Truncate(ctx context.Context) error {
	query, args, err := s.dialect.Truncate(entities.EventsTable).Identity("RESTART").ToSQL()
	if err != nil {
		return fmt.Errorf("building truncate: %w", err)
	}
	if _, err := s.client.DB().ExecContext(ctx, query, args...); err != nil {
		return classify("failed to truncate events", err)
	}
	return nil
}

func (s *EventSeeder) insertQuery(e *entities.Event, now time.Time) (string, []interface{}, error) {
	createdAt, updatedAt := e.CreatedAt, e.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	record := goqu.Record{
		string(entities.EventColumnName):              e.Name,
		string(entities.EventColumnDescription):       e.Description,
		string(entities.EventColumnFromDate):          e.FromDate,
		string(entities.EventColumnToDate):            e.ToDate,
		string(entities.EventColumnCity):              e.City,
		string(entities.EventColumnCountry):           e.Country,
		string(entities.EventColumnWebsite):           e.Website,
		string(entities.EventColumnStyle):             e.Style,
		string(entities.EventColumnImageURL):          e.ImageURL,
		string(entities.EventColumnQualityScore):      e.QualityScore,
		string(entities.EventColumnCompletenessScore): e.CompletenessScore,
		string(entities.EventColumnExtractionMethod):  e.ExtractionMethod,
		string(entities.EventColumnCreatedAt):         createdAt,
		string(entities.EventColumnUpdatedAt):         updatedAt,
	}

	insert := s.dialect.Insert(entities.EventsTable).Prepared(true)
	if e.ID != 0 {
		record[string(entities.EventColumnID)] = e.ID
		update := goqu.Record{}
		for k := range record {
			if k != string(entities.EventColumnID) {
				update[k] = goqu.L("EXCLUDED." + k)
			}
		}
		insert = insert.OnConflict(goqu.DoUpdate(string(entities.EventColumnID), update))
	}

	return insert.Rows(record).ToSQL()
}
