// File path: internal/vector/index.go
package vector

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/reglens/reglens/internal/common/telemetry"
	"github.com/reglens/reglens/internal/fault"
)

// normTolerance bounds the acceptable deviation from unit length at insert
// and query time. Unit vectors keep every inner product inside [-1, 1].
const normTolerance = 1e-3

// Entry is one stored vector with its chunk identity and source metadata.
type Entry struct {
	ChunkID  string            `json:"chunk_id"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Hit is a single search result: the stored chunk and its raw inner-product
// score against the query.
type Hit struct {
	ChunkID  string
	Score    float32
	Metadata map[string]string
}

// Index is a flat, exact inner-product index over unit-norm vectors. Searches
// run concurrently; adds take exclusive access, so no search ever observes a
// partially inserted batch.
type Index struct {
	mu       sync.RWMutex
	dim      int
	ids      []string
	vectors  [][]float32
	metadata []map[string]string
	byID     map[string]int
}

func NewIndex(dim int) *Index {
	if dim <= 0 {
		dim = 384
	}
	return &Index{dim: dim, byID: make(map[string]int)}
}

// Dimension reports the vector width accepted by this index.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Len reports the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Add appends a batch of entries. Duplicate chunk ids, dimension mismatches,
// and non-unit vectors are contract violations rejected atomically: either
// the whole batch lands or none of it does.
func (ix *Index) Add(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.ChunkID == "" {
			return fault.Index("entry missing chunk id")
		}
		if _, ok := ix.byID[entry.ChunkID]; ok {
			return fault.Index(fmt.Sprintf("duplicate chunk id %q", entry.ChunkID))
		}
		if _, ok := seen[entry.ChunkID]; ok {
			return fault.Index(fmt.Sprintf("duplicate chunk id %q in batch", entry.ChunkID))
		}
		seen[entry.ChunkID] = struct{}{}
		if len(entry.Vector) != ix.dim {
			return fault.Index(fmt.Sprintf("vector for %q has dimension %d, index expects %d", entry.ChunkID, len(entry.Vector), ix.dim))
		}
		if err := checkUnitNorm(entry.Vector); err != nil {
			return fault.Index(fmt.Sprintf("vector for %q rejected: %v", entry.ChunkID, err))
		}
	}
	for _, entry := range entries {
		stored := make([]float32, len(entry.Vector))
		copy(stored, entry.Vector)
		var meta map[string]string
		if len(entry.Metadata) > 0 {
			meta = make(map[string]string, len(entry.Metadata))
			for k, v := range entry.Metadata {
				meta[k] = v
			}
		}
		ix.byID[entry.ChunkID] = len(ix.ids)
		ix.ids = append(ix.ids, entry.ChunkID)
		ix.vectors = append(ix.vectors, stored)
		ix.metadata = append(ix.metadata, meta)
	}
	return nil
}

// Search returns the k highest inner-product scores in descending order.
// Ties keep insertion order. An empty index yields an empty result.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	if len(query) != ix.dim {
		return nil, fault.Index(fmt.Sprintf("query has dimension %d, index expects %d", len(query), ix.dim))
	}
	if err := checkUnitNorm(query); err != nil {
		return nil, fault.Index(fmt.Sprintf("query rejected: %v", err))
	}
	start := time.Now()
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.ids) == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(ix.ids))
	for pos, vec := range ix.vectors {
		var dot float32
		for i, v := range vec {
			dot += v * query[i]
		}
		hits = append(hits, Hit{ChunkID: ix.ids[pos], Score: dot, Metadata: ix.metadata[pos]})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	telemetry.RecordVectorSearch(time.Since(start))
	return hits, nil
}

func checkUnitNorm(vec []float32) error {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > normTolerance {
		return fmt.Errorf("norm %f outside unit tolerance", norm)
	}
	return nil
}

// snapshot is the gob wire form of an index. Vectors round-trip with exact
// float32 equality, so restored searches reproduce original results.
type snapshot struct {
	Dim      int
	IDs      []string
	Vectors  [][]float32
	Metadata []map[string]string
}

// Persist serializes the index to an opaque blob.
func (ix *Index) Persist() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	snap := snapshot{Dim: ix.dim, IDs: ix.ids, Vectors: ix.vectors, Metadata: ix.metadata}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore rebuilds an index from a Persist blob.
func Restore(blob []byte) (*Index, error) {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if snap.Dim <= 0 {
		return nil, fmt.Errorf("decode index: invalid dimension %d", snap.Dim)
	}
	ix := NewIndex(snap.Dim)
	ix.ids = snap.IDs
	ix.vectors = snap.Vectors
	ix.metadata = snap.Metadata
	for pos, id := range snap.IDs {
		ix.byID[id] = pos
	}
	return ix, nil
}
