// Package storage persists rights, chapters and service keys in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// Sentinel errors shared by the PostgreSQL stores.
var (
	// ErrNoDatabaseConnection is returned when a store is built without a connection.
	ErrNoDatabaseConnection = errors.New("no database connection")
	// ErrAlreadyExists is returned on unique constraint violations.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrNoChanges is returned when an update carries no columns.
	ErrNoChanges = errors.New("no changes to apply")
	// ErrUnknownColumn is returned when an update names a column outside the whitelist.
	ErrUnknownColumn = errors.New("unknown column")
)

// Connection wraps the pooled *sql.DB shared by every store.
type Connection struct {
	*sql.DB

	healthCheckTimeout time.Duration
}

// NewConnection opens a pool for cfg and verifies it with a ping.
func NewConnection(cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.MaskDatabaseURL(), err)
	}

	return &Connection{DB: db, healthCheckTimeout: cfg.HealthCheckTimeout}, nil
}

// HealthCheck pings the database within the configured timeout.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return ErrNoDatabaseConnection
	}

	timeout := c.healthCheckTimeout
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
