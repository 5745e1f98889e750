// Package facematch compares face embeddings.
//
// Euclidean distance with a tolerance of 0.6 reproduces the dlib/face_recognition
// convention; cosine distance suits normalized embeddings from ArcFace-style models.
package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/faceid/internal/constants"
)

// Metric names a distance function.
type Metric string

const (
	Euclidean Metric = "euclidean"
	Cosine    Metric = "cosine"
)

// DefaultTolerance is the distance at or below which two dlib embeddings are the same person.
const DefaultTolerance = constants.DefaultTolerance

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Euclidean, Cosine:
		return Metric(s), nil
	case "":
		return Euclidean, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// EuclideanDistance returns the L2 distance, or +Inf when the vectors cannot be compared.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// Distance dispatches on metric.
func (m Metric) Distance(a, b []float32) float64 {
	if m == Cosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

// Distances returns the distance from probe to every known embedding, in order.
func Distances(known [][]float32, probe []float32, metric Metric) []float64 {
	out := make([]float64, len(known))
	for i, k := range known {
		out[i] = metric.Distance(k, probe)
	}
	return out
}

// CompareFaces reports, per known embedding, whether it is within tolerance of probe.
// Embeddings of a different dimension never match.
func CompareFaces(known [][]float32, probe []float32, metric Metric, tolerance float64) []bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	distances := Distances(known, probe, metric)
	matches := make([]bool, len(distances))
	for i, d := range distances {
		matches[i] = len(known[i]) == len(probe) && d <= tolerance
	}
	return matches
}

// BestMatch returns the index and distance of the closest known embedding,
// or -1 and +Inf when known is empty.
func BestMatch(known [][]float32, probe []float32, metric Metric) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, d := range Distances(known, probe, metric) {
		if len(known[i]) == len(probe) && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
