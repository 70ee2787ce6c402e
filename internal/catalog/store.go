// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/corpus"
)

// Store persists document metadata and per-tenant index snapshots in SQLite.
type Store struct {
	db *sqlx.DB
}

// DocumentRecord is the catalog row for an ingested document.
type DocumentRecord struct {
	ID         string    `db:"id"`
	TenantID   string    `db:"tenant_id"`
	Category   string    `db:"category"`
	ChunkCount int       `db:"chunk_count"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// TenantStats summarizes a tenant's catalog footprint.
type TenantStats struct {
	DocumentCount int `db:"document_count"`
	ChunkCount    int `db:"chunk_count"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    chunk_count INTEGER NOT NULL DEFAULT 0,
    uploaded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);

CREATE TABLE IF NOT EXISTS index_snapshots (
    tenant_id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    snapshot BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// Open opens (creating if necessary) the catalog database described by cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	common.Logger().Info("catalog: opened", "path", cfg.Path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordDocument upserts the catalog row for an ingested document.
func (s *Store) RecordDocument(ctx context.Context, doc corpus.Document, chunkCount int) error {
	const query = `
INSERT INTO documents (id, tenant_id, category, chunk_count, uploaded_at)
VALUES (:id, :tenant_id, :category, :chunk_count, :uploaded_at)
ON CONFLICT(id) DO UPDATE SET
    tenant_id = excluded.tenant_id,
    category = excluded.category,
    chunk_count = excluded.chunk_count,
    uploaded_at = excluded.uploaded_at`
	record := DocumentRecord{
		ID:         doc.ID,
		TenantID:   doc.TenantID,
		Category:   doc.Category,
		ChunkCount: chunkCount,
		UploadedAt: doc.UploadedAt.UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("record document %s: %w", doc.ID, err)
	}
	return nil
}

// Documents returns the catalog rows for a tenant ordered by upload time.
func (s *Store) Documents(ctx context.Context, tenantID string) ([]DocumentRecord, error) {
	const query = `
SELECT id, tenant_id, category, chunk_count, uploaded_at
FROM documents
WHERE tenant_id = ?
ORDER BY uploaded_at, id`
	var records []DocumentRecord
	if err := s.db.SelectContext(ctx, &records, query, tenantID); err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", tenantID, err)
	}
	return records, nil
}

// Stats aggregates the document and chunk counts recorded for a tenant.
func (s *Store) Stats(ctx context.Context, tenantID string) (TenantStats, error) {
	const query = `
SELECT COUNT(*) AS document_count, COALESCE(SUM(chunk_count), 0) AS chunk_count
FROM documents
WHERE tenant_id = ?`
	var stats TenantStats
	if err := s.db.GetContext(ctx, &stats, query, tenantID); err != nil {
		return TenantStats{}, fmt.Errorf("tenant stats for %s: %w", tenantID, err)
	}
	return stats, nil
}

// SaveSnapshot stores the serialized vector index for a tenant at a version.
func (s *Store) SaveSnapshot(ctx context.Context, tenantID string, version uint64, snapshot []byte) error {
	const query = `
INSERT INTO index_snapshots (tenant_id, version, snapshot, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(tenant_id) DO UPDATE SET
    version = excluded.version,
    snapshot = excluded.snapshot,
    updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, tenantID, int64(version), snapshot, time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot for %s: %w", tenantID, err)
	}
	return nil
}

// LoadSnapshot returns the stored index snapshot and its version for a
// tenant. A tenant without a snapshot yields nil bytes and version zero.
func (s *Store) LoadSnapshot(ctx context.Context, tenantID string) ([]byte, uint64, error) {
	const query = `SELECT snapshot, version FROM index_snapshots WHERE tenant_id = ?`
	var row struct {
		Snapshot []byte `db:"snapshot"`
		Version  int64  `db:"version"`
	}
	if err := s.db.GetContext(ctx, &row, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("load snapshot for %s: %w", tenantID, err)
	}
	return row.Snapshot, uint64(row.Version), nil
}

// RemoveTenant deletes all catalog rows belonging to a tenant.
func (s *Store) RemoveTenant(ctx context.Context, tenantID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove tenant: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("remove tenant documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_snapshots WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("remove tenant snapshots: %w", err)
	}
	return tx.Commit()
}
