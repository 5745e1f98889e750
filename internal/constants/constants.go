// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultTolerance is the maximum Euclidean distance at which two dlib
	// embeddings are considered the same person. Lower values = stricter matching
	DefaultTolerance = 0.6

	// DefaultNeighbors is the number of index candidates examined when identifying a face
	DefaultNeighbors = 10
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the embedding backend
	MaxImageSize = 1600
)
