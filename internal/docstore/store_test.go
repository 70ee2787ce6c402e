// File path: internal/docstore/store_test.go
package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/reglens/reglens/internal/corpus"
)

func TestAppendAndReadBack(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	docs := []corpus.Document{
		{ID: "d1", TenantID: "tenant-a", RawText: "storage conditions", Category: "sop", UploadedAt: time.Now().UTC()},
		{ID: "d2", TenantID: "tenant-a", RawText: "stability protocol"},
	}
	if err := store.AppendDocuments(ctx, "tenant-a", docs); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := store.Documents(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got))
	}
	if got[0].ID != "d1" || got[1].ID != "d2" {
		t.Fatalf("document order not preserved: %+v", got)
	}
	if got[0].RawText != "storage conditions" {
		t.Fatalf("raw text lost: %q", got[0].RawText)
	}
}

func TestDocumentsMissingTenant(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	docs, err := store.Documents(context.Background(), "tenant-missing")
	if err != nil {
		t.Fatalf("missing tenant should not error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty archive, got %d docs", len(docs))
	}
}

func TestTenantsIsolatedFiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.AppendDocuments(ctx, "tenant-a", []corpus.Document{{ID: "a1", TenantID: "tenant-a"}}); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := store.AppendDocuments(ctx, "tenant-b", []corpus.Document{{ID: "b1", TenantID: "tenant-b"}, {ID: "b2", TenantID: "tenant-b"}}); err != nil {
		t.Fatalf("append b: %v", err)
	}
	infos, err := store.Tenants(ctx)
	if err != nil {
		t.Fatalf("tenants: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(infos))
	}
	if infos[0].TenantID != "tenant-a" || infos[0].Documents != 1 {
		t.Fatalf("unexpected tenant info: %+v", infos[0])
	}
	if infos[1].TenantID != "tenant-b" || infos[1].Documents != 2 {
		t.Fatalf("unexpected tenant info: %+v", infos[1])
	}
}

func TestRemoveTenant(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.AppendDocuments(ctx, "tenant-a", []corpus.Document{{ID: "a1"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Remove("tenant-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	docs, err := store.Documents(ctx, "tenant-a")
	if err != nil || len(docs) != 0 {
		t.Fatalf("archive should be gone, got %d docs, err %v", len(docs), err)
	}
}
