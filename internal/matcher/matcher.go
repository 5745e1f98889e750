// Package matcher checks a new face image against stored embedding collections.
package matcher

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/kozaktomas/faceid/internal/constants"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/facematch"
	"github.com/kozaktomas/faceid/internal/npy"
)

// Outcome of comparing an image against known faces.
type Outcome string

const (
	NoFace  Outcome = "no_face"
	NoMatch Outcome = "no_match"
	Match   Outcome = "match"
)

// Message is the human-readable line printed for an outcome.
func (o Outcome) Message() string {
	switch o {
	case Match:
		return "Match!"
	case NoMatch:
		return "No match!"
	default:
		return "No face found!"
	}
}

// MatchResult describes one comparison.
type MatchResult struct {
	Outcome  Outcome
	Matches  []bool  // per known embedding, empty when no face was found
	Best     int     // index of the closest known embedding, -1 if none
	Distance float64 // distance to Best, +Inf if none
}

// IdentifyResult describes a lookup across all users.
type IdentifyResult struct {
	Outcome  Outcome
	UserID   int64 // valid when Outcome is Match
	Row      int
	Distance float64
	Indexed  int // embeddings searched
	Skipped  []int64
}

// Matcher compares probe faces to known embeddings.
type Matcher struct {
	extractor faceembed.Extractor
	metric    facematch.Metric
	tolerance float64
	neighbors int
}

// New creates a Matcher.
func New(extractor faceembed.Extractor, metric facematch.Metric, tolerance float64, neighbors int) *Matcher {
	if tolerance <= 0 {
		tolerance = facematch.DefaultTolerance
	}
	if neighbors <= 0 {
		neighbors = constants.DefaultNeighbors
	}
	return &Matcher{
		extractor: extractor,
		metric:    metric,
		tolerance: tolerance,
		neighbors: neighbors,
	}
}

// Match extracts the first face of img and compares it to every known embedding.
// A missing face is reported as NoFace, not as an error.
func (m *Matcher) Match(ctx context.Context, known [][]float32, img image.Image) (*MatchResult, error) {
	probe, found, err := m.extractor.FirstFace(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extracting face: %w", err)
	}
	if !found {
		return &MatchResult{Outcome: NoFace, Best: -1, Distance: math.Inf(1)}, nil
	}
	return m.Compare(known, probe), nil
}

// Compare matches an already extracted probe embedding.
func (m *Matcher) Compare(known [][]float32, probe []float32) *MatchResult {
	matches := facematch.CompareFaces(known, probe, m.metric, m.tolerance)
	best, dist := facematch.BestMatch(known, probe, m.metric)

	res := &MatchResult{Outcome: NoMatch, Matches: matches, Best: best, Distance: dist}
	for _, ok := range matches {
		if ok {
			res.Outcome = Match
			break
		}
	}
	return res
}

// Identify finds the user whose stored faces are nearest to the face in img.
// Collections that fail to decode or do not fit the index are skipped and reported.
func (m *Matcher) Identify(ctx context.Context, reader database.FaceReader, img image.Image) (*IdentifyResult, error) {
	probe, found, err := m.extractor.FirstFace(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extracting face: %w", err)
	}
	if !found {
		return &IdentifyResult{Outcome: NoFace, UserID: -1, Distance: math.Inf(1)}, nil
	}

	records, err := reader.ListFaceData(ctx)
	if err != nil {
		return nil, err
	}

	idx := facematch.NewIndex(m.metric)
	res := &IdentifyResult{Outcome: NoMatch, UserID: -1, Distance: math.Inf(1)}
	for _, rec := range records {
		embeddings, err := npy.Unmarshal(rec.Data)
		if err != nil {
			res.Skipped = append(res.Skipped, rec.UserID)
			continue
		}
		if len(embeddings) > 0 && len(embeddings[0]) != len(probe) {
			res.Skipped = append(res.Skipped, rec.UserID)
			continue
		}
		if err := idx.AddCollection(rec.UserID, embeddings); err != nil {
			res.Skipped = append(res.Skipped, rec.UserID)
		}
	}
	res.Indexed = idx.Len()

	hits, err := idx.Search(probe, m.neighbors)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return res, nil
	}

	res.Distance = hits[0].Distance
	if hits[0].Distance <= m.tolerance {
		res.Outcome = Match
		res.UserID = hits[0].UserID
		res.Row = hits[0].Row
	}
	return res, nil
}

// LoadKnownFile reads an embedding collection saved with numpy.save or by this tool.
func LoadKnownFile(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading known faces: %w", err)
	}
	known, err := npy.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return known, nil
}

// LoadKnownUser reads a user's embedding collection from the database.
func LoadKnownUser(ctx context.Context, reader database.FaceReader, userID int64) ([][]float32, error) {
	data, err := reader.LoadFaceData(ctx, userID)
	if err != nil {
		return nil, err
	}
	known, err := npy.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("user %d face data: %w", userID, err)
	}
	return known, nil
}
