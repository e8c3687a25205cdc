package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// Migration is one versioned schema change
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt *time.Time
}

// MigrationManager applies the embedded schema migrations
type MigrationManager struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// NewMigrationManager creates a migration manager for the client's pool
func NewMigrationManager(client *Client) *MigrationManager {
	return &MigrationManager{
		db:      client.DB(),
		dialect: goqu.Dialect("postgres"),
	}
}

// EnsureMigrationsTable creates the bookkeeping table if needed
func (m *MigrationManager) EnsureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating %s: %w", migrationsTable, err)
	}
	return nil
}

// Available returns the embedded migrations sorted by version
func (m *MigrationManager) Available() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// "001_events.sql" -> version 1, name "events"
		parts := strings.SplitN(strings.TrimSuffix(entry.Name(), ".sql"), "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := migrationsFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{Version: version, Name: parts[1], SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Applied returns applied migration versions and when they ran
func (m *MigrationManager) Applied(ctx context.Context) (map[int]time.Time, error) {
	query, args, err := m.dialect.From(migrationsTable).
		Select("version", "applied_at").
		Order(goqu.C("version").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building applied migrations query: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Status returns every available migration with AppliedAt filled in for
// the ones already applied.
func (m *MigrationManager) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	available, err := m.Available()
	if err != nil {
		return nil, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	for i := range available {
		if at, ok := applied[available[i].Version]; ok {
			at := at
			available[i].AppliedAt = &at
		}
	}
	return available, nil
}

// ApplyPending applies every migration not yet recorded, each in its own
// transaction. It returns the migrations it applied.
func (m *MigrationManager) ApplyPending(ctx context.Context) ([]Migration, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, migration := range status {
		if migration.AppliedAt != nil {
			continue
		}
		if err := m.apply(ctx, migration); err != nil {
			return done, err
		}
		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applied migration")
		done = append(done, migration)
	}
	return done, nil
}

func (m *MigrationManager) apply(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %03d: %w", migration.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("applying migration %03d_%s: %w", migration.Version, migration.Name, err)
	}

	query, args, err := m.dialect.Insert(migrationsTable).
		Rows(goqu.Record{"version": migration.Version, "name": migration.Name}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("building migration record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording migration %03d: %w", migration.Version, err)
	}

	return tx.Commit()
}
