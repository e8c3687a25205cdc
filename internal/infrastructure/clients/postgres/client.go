package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/swingfinder/festival-finder/pkg/config"
	"github.com/swingfinder/festival-finder/pkg/retry"
)

// Client represents a PostgreSQL database client. Writes go to the
// primary; searches may be spread over read replicas.
type Client struct {
	db           *sql.DB
	replicas     []*sql.DB
	rrIndex      atomic.Uint32
	queryTimeout time.Duration
}

// NewClient creates a new PostgreSQL client with exponential backoff retry
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	db, err := openPool(cfg, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	err = retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"PostgreSQL",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).
				Msg("PostgreSQL connection attempt failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	client := NewClientFromDB(db, cfg.QueryTimeout)

	// A replica that is down at startup is skipped; the primary serves
	// its share of reads.
	for i, dsn := range cfg.ReplicaURLs {
		replica, err := openPool(cfg, dsn)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = replica.PingContext(ctx)
			cancel()
			if err != nil {
				replica.Close()
			}
		}
		if err != nil {
			log.Warn().Err(err).Int("replica", i).Msg("Skipping unreachable read replica")
			continue
		}
		client.replicas = append(client.replicas, replica)
	}

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Int("read_replicas", len(client.replicas)).
		Msg("Connected to PostgreSQL")
	return client, nil
}

func openPool(cfg *config.DatabaseConfig, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// NewClientFromDB wraps an existing connection pool. Used by tests and
// tools that manage the pool themselves.
func NewClientFromDB(db *sql.DB, queryTimeout time.Duration, replicas ...*sql.DB) *Client {
	return &Client{db: db, replicas: replicas, queryTimeout: queryTimeout}
}

// DB returns the primary connection pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Reader returns the pool one read should use: the next replica in
// round-robin order, or the primary when there are none. Callers that
// issue several statements for one answer must reuse the same pool.
func (c *Client) Reader() *sql.DB {
	if len(c.replicas) == 0 {
		return c.db
	}
	idx := c.rrIndex.Add(1)
	return c.replicas[idx%uint32(len(c.replicas))]
}

// Close closes the primary and every replica
func (c *Client) Close() error {
	errs := []error{c.db.Close()}
	for _, replica := range c.replicas {
		errs = append(errs, replica.Close())
	}
	return errors.Join(errs...)
}

// BeginTx starts a new transaction on the primary
func (c *Client) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// BeginReadOnlyTx starts a read-only transaction at the given isolation
// on a reader pool.
func (c *Client) BeginReadOnlyTx(ctx context.Context, level sql.IsolationLevel) (*sql.Tx, error) {
	return c.Reader().BeginTx(ctx, &sql.TxOptions{Isolation: level, ReadOnly: true})
}

// Ping verifies the primary. Replicas are optional and not checked.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// WithQueryTimeout bounds ctx by the configured query timeout. The bound
// covers waiting for a pooled connection as well as the query itself.
func (c *Client) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}
