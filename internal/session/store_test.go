// File path: internal/session/store_test.go
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/reglens/reglens/internal/catalog"
	"github.com/reglens/reglens/internal/common/telemetry"
	"github.com/reglens/reglens/internal/vector"
)

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	cfg := catalog.Config{Path: filepath.Join(t.TempDir(), "catalog.db")}
	store, err := catalog.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func axisEntry(id string, axis int) vector.Entry {
	vec := make([]float32, 4)
	vec[axis] = 1
	return vector.Entry{ChunkID: id, Vector: vec}
}

func axisQuery(axis int) []float32 {
	vec := make([]float32, 4)
	vec[axis] = 1
	return vec
}

func TestTenantIsolation(t *testing.T) {
	store := NewStore(Config{Dimension: 4}, testCatalog(t))
	ctx := context.Background()

	if _, err := store.AddChunks(ctx, "acme", "doc-a", []vector.Entry{axisEntry("a-1", 0)}); err != nil {
		t.Fatalf("add for acme: %v", err)
	}
	if _, err := store.AddChunks(ctx, "globex", "doc-b", []vector.Entry{axisEntry("b-1", 1)}); err != nil {
		t.Fatalf("add for globex: %v", err)
	}

	hits, _, err := store.Search(ctx, "acme", axisQuery(1), 10)
	if err != nil {
		t.Fatalf("search acme: %v", err)
	}
	for _, hit := range hits {
		if hit.ChunkID == "b-1" {
			t.Fatalf("acme search surfaced globex chunk %q", hit.ChunkID)
		}
	}

	stats, err := store.TenantStats(ctx, "globex")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ChunkCount != 1 || stats.DocumentCount != 1 {
		t.Fatalf("unexpected globex stats: %+v", stats)
	}
}

func TestVersionBumpsPerBatch(t *testing.T) {
	store := NewStore(Config{Dimension: 4}, testCatalog(t))
	ctx := context.Background()

	v1, err := store.AddChunks(ctx, "acme", "doc-1", []vector.Entry{axisEntry("c-1", 0)})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	v2, err := store.AddChunks(ctx, "acme", "doc-2", []vector.Entry{axisEntry("c-2", 1)})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Fatalf("expected versions 1 then 2, got %d and %d", v1, v2)
	}

	// A rejected batch must not advance the version.
	if _, err := store.AddChunks(ctx, "acme", "doc-3", []vector.Entry{axisEntry("c-1", 2)}); err == nil {
		t.Fatal("expected duplicate chunk id rejection")
	}
	version, err := store.Version(ctx, "acme")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 2 {
		t.Fatalf("version advanced on failed add: %d", version)
	}
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	cat := testCatalog(t)
	ctx := context.Background()

	first := NewStore(Config{Dimension: 4}, cat)
	if _, err := first.AddChunks(ctx, "acme", "doc-1", []vector.Entry{axisEntry("s-1", 2)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewStore(Config{Dimension: 4}, cat)
	hits, version, err := second.Search(ctx, "acme", axisQuery(2), 5)
	if err != nil {
		t.Fatalf("search after restart: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "s-1" {
		t.Fatalf("expected restored chunk s-1, got %+v", hits)
	}
	if version != 1 {
		t.Fatalf("expected restored version 1, got %d", version)
	}
}

func TestCrossTenantOperationsRunConcurrently(t *testing.T) {
	store := NewStore(Config{Dimension: 4}, testCatalog(t))
	ctx := context.Background()

	if _, err := store.AddChunks(ctx, "globex", "doc-seed", []vector.Entry{axisEntry("g-seed", 1)}); err != nil {
		t.Fatalf("seed globex: %v", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	// Sustained ingestion for one tenant must not serialize against another
	// tenant's reads: only per-session state is locked during an add.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			entries := []vector.Entry{axisEntry(fmt.Sprintf("a-%d", i), i%4)}
			if _, err := store.AddChunks(ctx, "acme", fmt.Sprintf("doc-%d", i), entries); err != nil {
				errCh <- err
				return
			}
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, _, err := store.Search(ctx, "globex", axisQuery(1), 5); err != nil {
				errCh <- err
				return
			}
			if _, err := store.TenantStats(ctx, "globex"); err != nil {
				errCh <- err
				return
			}
		}
	}()
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent operation failed: %v", err)
	}

	acme, err := store.TenantStats(ctx, "acme")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if acme.ChunkCount != 50 || acme.IndexVersion != 50 {
		t.Fatalf("unexpected acme stats after concurrent adds: %+v", acme)
	}
}

func TestAddChunksHonorsMemoryLimit(t *testing.T) {
	t.Setenv("REGLENS_MEMORY_LIMIT_BYTES", "1")
	store := NewStore(Config{Dimension: 4}, testCatalog(t))

	_, err := store.AddChunks(context.Background(), "acme", "doc-1", []vector.Entry{axisEntry("m-1", 0)})
	var limitErr telemetry.MemoryLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected memory limit error, got %v", err)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	store := NewStore(Config{Dimension: 4, InactivityTTL: 10 * time.Millisecond}, testCatalog(t))
	ctx := context.Background()

	if _, err := store.AddChunks(ctx, "acme", "doc-1", []vector.Entry{axisEntry("e-1", 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	store.sweep(ctx)

	store.mu.Lock()
	_, resident := store.sessions["acme"]
	store.mu.Unlock()
	if resident {
		t.Fatal("expected idle session to be evicted")
	}

	// The evicted tenant rehydrates from its snapshot on the next call.
	hits, _, err := store.Search(ctx, "acme", axisQuery(0), 5)
	if err != nil {
		t.Fatalf("search after eviction: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "e-1" {
		t.Fatalf("expected rehydrated chunk e-1, got %+v", hits)
	}
}
