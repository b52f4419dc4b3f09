// Package sqldb opens the relational engine backing the index. The same
// client serves PostgreSQL (lib/pq) and SQLite (mattn/go-sqlite3); callers
// pick the engine through StoreConfig.Driver and everything above this
// package speaks database/sql.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dangtom700/lexindex/pkg/config"
	"github.com/dangtom700/lexindex/pkg/resilience"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Client wraps a database/sql pool together with the driver it was opened
// with, so SQL generation can stay engine-aware where it has to be.
type Client struct {
	DB     *sql.DB
	Driver string
	cfg    config.StoreConfig
}

// Open connects to the configured engine and verifies the connection with a
// ping, retrying briefly so a store that is still starting up does not fail
// the run.
func Open(ctx context.Context, cfg config.StoreConfig) (*Client, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite3" {
		// SQLite serializes writers internally; extra pool connections
		// only create lock contention.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	err = resilience.Retry(ctx, "store-ping", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
	}, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s store: %w", cfg.Driver, err)
	}
	return &Client{DB: db, Driver: cfg.Driver, cfg: cfg}, nil
}

// Close closes the underlying pool.
func (c *Client) Close() error {
	return c.DB.Close()
}

// InTx runs fn inside a single transaction, rolling back on error.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
