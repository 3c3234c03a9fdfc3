// Package annindex provides a flat inner-product vector index with durable
// snapshots. It maps article embeddings to dedup cluster ids.
package annindex

import (
	"fmt"
	"sync"

	"newsradar/internal/logger"
)

// Entry associates one stored vector ordinal with the article it embeds and
// the cluster that article belongs to.
type Entry struct {
	ArticleID string `json:"article_id"`
	ClusterID string `json:"cluster_id"`
}

// Index is an exact nearest-neighbour index over unit vectors. Similarity is
// the dot product, which equals cosine similarity for normalised inputs.
// Add and Snapshot serialise through an exclusive lock; Query takes shared
// access.
type Index struct {
	mu            sync.RWMutex
	dim           int
	vectors       [][]float32
	entries       []Entry
	articleIDs    map[string]struct{}
	path          string
	snapshotEvery int
	sinceSnapshot int
}

// New creates an empty index for vectors of the given dimension. Snapshots
// are written under path; snapshotEvery controls how many adds elapse
// between snapshot requests (0 disables periodic snapshots).
func New(dim int, path string, snapshotEvery int) *Index {
	return &Index{
		dim:           dim,
		articleIDs:    make(map[string]struct{}),
		path:          path,
		snapshotEvery: snapshotEvery,
	}
}

// Query returns the similarity and cluster id of the nearest stored vector.
// ok is false when the index is empty.
func (ix *Index) Query(vec []float32) (similarity float64, clusterID string, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 || len(vec) != ix.dim {
		return 0, "", false
	}

	best := -1
	bestSim := float64(-2)
	for i, stored := range ix.vectors {
		sim := dot(stored, vec)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if best < 0 {
		return 0, "", false
	}
	return bestSim, ix.entries[best].ClusterID, true
}

// Add appends a vector for the given article and cluster. It returns true
// when a periodic snapshot is due; the caller decides whether to run it
// (typically in a separate goroutine).
func (ix *Index) Add(vec []float32, articleID, clusterID string) (snapshotDue bool, err error) {
	if len(vec) != ix.dim {
		return false, fmt.Errorf("vector dimension mismatch: expected %d, got %d", ix.dim, len(vec))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored := make([]float32, len(vec))
	copy(stored, vec)
	ix.vectors = append(ix.vectors, stored)
	ix.entries = append(ix.entries, Entry{ArticleID: articleID, ClusterID: clusterID})
	ix.articleIDs[articleID] = struct{}{}

	ix.sinceSnapshot++
	if ix.snapshotEvery > 0 && ix.sinceSnapshot >= ix.snapshotEvery {
		ix.sinceSnapshot = 0
		return true, nil
	}
	return false, nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Contains reports whether the article already has a vector in the index.
func (ix *Index) Contains(articleID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.articleIDs[articleID]
	return ok
}

// Dim returns the vector dimension the index accepts.
func (ix *Index) Dim() int {
	return ix.dim
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func logRestoreWarning(path string, err error) {
	logger.Warn("Failed to restore ANN index, starting empty", "path", path, "error", err.Error())
}
