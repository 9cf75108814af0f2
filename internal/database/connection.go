// Package database manages the PostgreSQL connection and schema migrations
// for the audit store. SQLite deployments do not use this package; the
// embedded store manages its own schema.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DB wraps the sql.DB handle with logging.
type DB struct {
	Conn *sql.DB
	log  *logrus.Logger
}

// NewConnection opens a PostgreSQL connection pool from a database URL and
// verifies it with a ping.
func NewConnection(ctx context.Context, databaseURL string, logger *logrus.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("Database connection pool established")
	return &DB{Conn: conn, log: logger}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.Conn != nil {
		db.Conn.Close()
		db.log.Info("Database connection pool closed")
	}
}

// Health checks the database connection.
func (db *DB) Health(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// Stats returns connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.Conn.Stats()
}
