package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
)

// Dialect is the MySQL/MariaDB flavour of the face store SQL.
var Dialect = database.Dialect{
	QuoteIdentifier: QuoteIdentifier,
	Placeholder:     func(int) string { return "?" },
	BlobType:        "LONGBLOB",
	ColumnExistsQuery: `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`,
}

func init() {
	database.RegisterBackend(config.DriverMySQL, func(cfg *config.DatabaseConfig) (database.Store, error) {
		return Open(cfg)
	})
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// PrepareDSN parses dsn and enables found-rows reporting so an UPDATE that
// rewrites an identical blob still counts the matched row.
func PrepareDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	mc.ClientFoundRows = true
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}
	dsn, err := PrepareDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return db, nil
}

// Open connects to MariaDB and returns a face store over the configured users table.
func Open(cfg *config.DatabaseConfig) (*database.SQLStore, error) {
	db, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	return database.NewSQLStore(db, Dialect, cfg), nil
}
