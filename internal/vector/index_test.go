// File path: internal/vector/index_test.go
package vector

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/reglens/reglens/internal/fault"
)

func unitVec(dim, hot int) []float32 {
	vec := make([]float32, dim)
	vec[hot] = 1
	return vec
}

func blendVec(dim, a, b int, wa, wb float64) []float32 {
	vec := make([]float32, dim)
	norm := math.Sqrt(wa*wa + wb*wb)
	vec[a] = float32(wa / norm)
	vec[b] = float32(wb / norm)
	return vec
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := NewIndex(8)
	hits, err := ix.Search(unitVec(8, 0), 5)
	if err != nil {
		t.Fatalf("search on empty index errored: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	ix := NewIndex(8)
	if err := ix.Add([]Entry{{ChunkID: "c1", Vector: unitVec(8, 0)}}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := ix.Add([]Entry{{ChunkID: "c1", Vector: unitVec(8, 1)}})
	if !fault.Is(err, fault.CodeIndex) {
		t.Fatalf("expected index fault for duplicate id, got %v", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("failed add mutated the index")
	}
}

func TestAddRejectsUnnormalizedVector(t *testing.T) {
	vec := make([]float32, 8)
	vec[0] = 2
	err := NewIndex(8).Add([]Entry{{ChunkID: "c1", Vector: vec}})
	if !fault.Is(err, fault.CodeIndex) {
		t.Fatalf("expected rejection of non-unit vector, got %v", err)
	}
}

func TestSearchIdenticalVectorsScoreOne(t *testing.T) {
	ix := NewIndex(8)
	query := blendVec(8, 0, 1, 3, 4)
	entries := []Entry{
		{ChunkID: "c1", Vector: blendVec(8, 0, 1, 3, 4)},
		{ChunkID: "c2", Vector: blendVec(8, 0, 1, 3, 4)},
		{ChunkID: "c3", Vector: unitVec(8, 5)},
	}
	if err := ix.Add(entries); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	hits, err := ix.Search(query, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, hit := range hits {
		if math.Abs(float64(hit.Score)-1.0) > 1e-5 {
			t.Fatalf("hit %s score %f, expected ~1.0", hit.ChunkID, hit.Score)
		}
	}
	// Identical scores keep insertion order.
	if hits[0].ChunkID != "c1" || hits[1].ChunkID != "c2" {
		t.Fatalf("tie-break violated insertion order: %s, %s", hits[0].ChunkID, hits[1].ChunkID)
	}
}

func TestSearchScoresBounded(t *testing.T) {
	ix := NewIndex(16)
	var entries []Entry
	for i := 0; i < 16; i++ {
		entries = append(entries, Entry{ChunkID: fmt.Sprintf("c%d", i), Vector: blendVec(16, i, (i+3)%16, 1, 2)})
	}
	if err := ix.Add(entries); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	hits, err := ix.Search(blendVec(16, 2, 9, 2, 1), 16)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, hit := range hits {
		if hit.Score < -1.0001 || hit.Score > 1.0001 {
			t.Fatalf("score %f outside [-1, 1]", hit.Score)
		}
	}
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	ix := NewIndex(8)
	entries := []Entry{
		{ChunkID: "c1", Vector: blendVec(8, 0, 3, 1, 5), Metadata: map[string]string{"section": "4.2 STORAGE"}},
		{ChunkID: "c2", Vector: blendVec(8, 1, 2, 2, 2)},
	}
	if err := ix.Add(entries); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	blob, err := ix.Persist()
	if err != nil {
		t.Fatalf("persist failed: %v", err)
	}
	restored, err := Restore(blob)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	query := blendVec(8, 0, 2, 1, 1)
	before, err := ix.Search(query, 5)
	if err != nil {
		t.Fatalf("search before persist failed: %v", err)
	}
	after, err := restored.Search(query, 5)
	if err != nil {
		t.Fatalf("search after restore failed: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count changed after restore")
	}
	for i := range before {
		if before[i].ChunkID != after[i].ChunkID || before[i].Score != after[i].Score {
			t.Fatalf("result %d changed after restore: %+v vs %+v", i, before[i], after[i])
		}
	}
	if after[0].Metadata["section"] == "" && before[0].Metadata["section"] != "" {
		t.Fatalf("metadata lost in round trip")
	}
}

func TestConcurrentSearchAndAdd(t *testing.T) {
	ix := NewIndex(8)
	if err := ix.Add([]Entry{{ChunkID: "seed", Vector: unitVec(8, 0)}}); err != nil {
		t.Fatalf("seed add failed: %v", err)
	}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := ix.Search(unitVec(8, i%8), 3); err != nil {
					t.Errorf("concurrent search failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			entry := Entry{ChunkID: fmt.Sprintf("w%d", i), Vector: unitVec(8, i%8)}
			if err := ix.Add([]Entry{entry}); err != nil {
				t.Errorf("concurrent add failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()
	if ix.Len() != 51 {
		t.Fatalf("expected 51 entries, got %d", ix.Len())
	}
}
