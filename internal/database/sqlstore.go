package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/faceid/internal/config"
)

// Dialect holds the SQL differences between drivers.
type Dialect struct {
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier func(name string) string
	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// BlobType is the column type used by EnsureFaceColumn.
	BlobType string
	// ColumnExistsQuery counts columns matching (table, column) in the current schema.
	ColumnExistsQuery string
}

// SQLStore implements Store on database/sql for a configurable users table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	table      string
	rawTable   string
	idColumn   string
	faceColumn string
	rawFace    string
	timeout    time.Duration
}

// NewSQLStore wraps db. Table and column names come from cfg and are quoted by the dialect.
func NewSQLStore(db *sql.DB, dialect Dialect, cfg *config.DatabaseConfig) *SQLStore {
	return &SQLStore{
		db:         db,
		dialect:    dialect,
		table:      dialect.QuoteIdentifier(cfg.Table),
		rawTable:   cfg.Table,
		idColumn:   dialect.QuoteIdentifier(cfg.IDColumn),
		faceColumn: dialect.QuoteIdentifier(cfg.FaceColumn),
		rawFace:    cfg.FaceColumn,
		timeout:    cfg.Timeout,
	}
}

// withTimeout bounds a single statement by the configured database timeout.
func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// DB returns the underlying sql.DB for direct access.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// SaveFaceData overwrites the user's face column.
func (s *SQLStore) SaveFaceData(ctx context.Context, userID int64, data []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		s.table, s.faceColumn, s.dialect.Placeholder(1), s.idColumn, s.dialect.Placeholder(2))

	result, err := s.db.ExecContext(ctx, query, data, userID)
	if err != nil {
		return fmt.Errorf("updating face data: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	return nil
}

// LoadFaceData returns the user's face column.
func (s *SQLStore) LoadFaceData(ctx context.Context, userID int64) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.faceColumn, s.table, s.idColumn, s.dialect.Placeholder(1))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading face data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNoFaceData)
	}
	return data, nil
}

// ListFaceData returns all users with non-empty face data.
func (s *SQLStore) ListFaceData(ctx context.Context) ([]UserFaceData, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		s.idColumn, s.faceColumn, s.table, s.faceColumn, s.idColumn)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing face data: %w", err)
	}
	defer rows.Close()

	var out []UserFaceData
	for rows.Next() {
		var rec UserFaceData
		if err := rows.Scan(&rec.UserID, &rec.Data); err != nil {
			return nil, fmt.Errorf("scanning face data: %w", err)
		}
		if len(rec.Data) == 0 {
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating face data: %w", err)
	}
	return out, nil
}

// EnsureFaceColumn adds the face column when the users table lacks it.
func (s *SQLStore) EnsureFaceColumn(ctx context.Context) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.ColumnExistsQuery, s.rawTable, s.rawFace).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking face column: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NULL", s.table, s.faceColumn, s.dialect.BlobType)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("adding face column: %w", err)
	}
	return true, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
