package database

import "errors"

var (
	// ErrUserNotFound is returned when no row has the requested user ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoFaceData is returned when a user exists but has no stored face data.
	ErrNoFaceData = errors.New("user has no face data")
)

// UserFaceData is one user's serialized embedding collection.
type UserFaceData struct {
	UserID int64
	Data   []byte
}
