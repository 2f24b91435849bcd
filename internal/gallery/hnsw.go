package gallery

import (
	"sync"

	"github.com/coder/hnsw"
)

// HNSW index parameters for face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchK is the candidate pool size for nearest-within-tolerance
	// searches. Small galleries need only a handful of candidates.
	hnswSearchK = 8
)

// hnswIndex wraps the HNSW graph for identity embedding search, keyed by
// identity label.
type hnswIndex struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[string]
	idToEntry map[string]Entry
}

func newHNSWIndex() *hnswIndex {
	return &hnswIndex{idToEntry: make(map[string]Entry)}
}

// build rebuilds the index from the given entries.
func (h *hnswIndex) build(entries []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(entries) == 0 {
		h.graph = nil
		h.idToEntry = make(map[string]Entry)
		return
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	h.idToEntry = make(map[string]Entry, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(e.Name, e.Embedding))
		h.idToEntry[e.Name] = e
	}

	h.graph = g
}

// nearest returns the closest identity within maxDistance, if any. Distances
// are recomputed with the exact cosine distance so the tolerance check does
// not depend on graph approximation.
func (h *hnswIndex) nearest(query []float32, maxDistance float64) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return "", false
	}

	bestName := ""
	bestDist := 0.0
	for _, n := range h.graph.Search(query, hnswSearchK) {
		e, ok := h.idToEntry[n.Key]
		if !ok || len(e.Embedding) == 0 {
			continue
		}
		dist := CosineDistance(query, e.Embedding)
		if dist > maxDistance {
			continue
		}
		if bestName == "" || dist < bestDist {
			bestName = e.Name
			bestDist = dist
		}
	}

	return bestName, bestName != ""
}
