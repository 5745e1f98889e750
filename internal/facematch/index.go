package facematch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW parameters. Collections here are a few embeddings per household member,
// so these favour recall over build time.
const (
	IndexMaxNeighbors = 16
	IndexEfSearch     = 64
)

// Owner identifies where an indexed embedding came from.
type Owner struct {
	UserID int64
	Row    int // position within the user's stored collection
}

// Neighbor is a search hit with its exact distance.
type Neighbor struct {
	Owner
	Distance float64
}

// Index is an in-memory nearest-neighbour graph over embeddings of many users.
type Index struct {
	mu     sync.RWMutex
	metric Metric
	graph  *hnsw.Graph[int64]
	owners map[int64]Owner
	dim    int
	nextID int64
}

// NewIndex creates an empty index using metric for both graph construction and ranking.
func NewIndex(metric Metric) *Index {
	g := hnsw.NewGraph[int64]()
	g.M = IndexMaxNeighbors
	g.Ml = 1.0 / float64(IndexMaxNeighbors)
	g.EfSearch = IndexEfSearch
	if metric == Cosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}

	return &Index{
		metric: metric,
		graph:  g,
		owners: make(map[int64]Owner),
	}
}

// AddCollection indexes every embedding of a user's collection.
// All embeddings in an index must share one dimension.
func (x *Index) AddCollection(userID int64, embeddings [][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for row, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		if x.dim == 0 {
			x.dim = len(emb)
		} else if len(emb) != x.dim {
			return fmt.Errorf("user %d row %d: dimension %d does not match index dimension %d", userID, row, len(emb), x.dim)
		}

		id := x.nextID
		x.nextID++
		x.graph.Add(hnsw.MakeNode(id, emb))
		x.owners[id] = Owner{UserID: userID, Row: row}
	}
	return nil
}

// Len returns the number of indexed embeddings.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.owners)
}

// Search returns up to k nearest embeddings ordered by exact distance.
func (x *Index) Search(query []float32, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.owners) == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), x.dim)
	}

	nodes := x.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		owner, ok := x.owners[n.Key]
		if !ok {
			continue
		}
		// Graph distances are float32 approximations; rank on the exact value.
		out = append(out, Neighbor{Owner: owner, Distance: x.metric.Distance(query, n.Value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Nearest returns the closest embedding within tolerance, if any.
func (x *Index) Nearest(query []float32, k int, tolerance float64) (Neighbor, bool, error) {
	hits, err := x.Search(query, k)
	if err != nil {
		return Neighbor{}, false, err
	}
	if len(hits) == 0 || hits[0].Distance > tolerance {
		return Neighbor{}, false, nil
	}
	return hits[0], true, nil
}
