package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/lib/pq"
)

// Dialect is the PostgreSQL flavour of the face store SQL.
var Dialect = database.Dialect{
	QuoteIdentifier: pq.QuoteIdentifier,
	Placeholder:     func(n int) string { return "$" + strconv.Itoa(n) },
	BlobType:        "bytea",
	ColumnExistsQuery: `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`,
}

func init() {
	database.RegisterBackend(config.DriverPostgres, func(cfg *config.DatabaseConfig) (database.Store, error) {
		return Open(cfg)
	})
}

// NewPool opens and verifies a PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open connects to PostgreSQL and returns a face store over the configured users table.
func Open(cfg *config.DatabaseConfig) (*database.SQLStore, error) {
	db, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	return database.NewSQLStore(db, Dialect, cfg), nil
}
