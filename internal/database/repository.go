package database

import (
	"context"
)

// FaceReader provides read-only access to stored face data
type FaceReader interface {
	// LoadFaceData returns the serialized embedding collection of a user.
	// Returns ErrUserNotFound when no row matches and ErrNoFaceData when the column is empty.
	LoadFaceData(ctx context.Context, userID int64) ([]byte, error)
	// ListFaceData returns every user that has face data, ordered by user ID
	ListFaceData(ctx context.Context) ([]UserFaceData, error)
}

// FaceWriter provides write access to face data
type FaceWriter interface {
	// SaveFaceData overwrites the face column of a user's row with a single UPDATE.
	// Returns ErrUserNotFound when no row matches.
	SaveFaceData(ctx context.Context, userID int64, data []byte) error
}

// Store is a connected face data backend.
type Store interface {
	FaceReader
	FaceWriter

	// EnsureFaceColumn adds the face column to the users table if it is missing.
	// Returns true when the column was created.
	EnsureFaceColumn(ctx context.Context) (bool, error)
	// Close releases the underlying connection pool.
	Close() error
}
