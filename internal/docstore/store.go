// File path: internal/docstore/store.go
package docstore

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reglens/reglens/internal/corpus"
)

// Store archives ingested documents as per-tenant JSONL files. It is the
// durable record of raw source text; vectors and metadata live elsewhere.
type Store struct {
	path string
	mu   sync.RWMutex
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{path: path}, nil
}

// AppendDocuments durably appends documents to the tenant's archive.
func (s *Store) AppendDocuments(ctx context.Context, tenantID string, docs []corpus.Document) error {
	if len(docs) == 0 {
		return nil
	}
	filePath, err := s.tenantFile(tenantID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
	}
	return nil
}

// Documents reads the tenant's full archive. A missing archive is empty, not
// an error.
func (s *Store) Documents(ctx context.Context, tenantID string) ([]corpus.Document, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	filePath, err := s.tenantFile(tenantID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 8<<20)
	var docs []corpus.Document
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc corpus.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	return docs, nil
}

// TenantInfo summarizes one tenant's archive.
type TenantInfo struct {
	TenantID  string
	Documents int
}

// Tenants lists archived tenants with their document counts.
func (s *Store) Tenants(ctx context.Context) ([]TenantInfo, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	infos := make([]TenantInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		tenantID, ok := decodeTenantFile(entry.Name())
		if !ok {
			continue
		}
		docs, err := s.Documents(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, TenantInfo{TenantID: tenantID, Documents: len(docs)})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].TenantID < infos[j].TenantID
	})
	return infos, nil
}

// Remove deletes a tenant's archive, used on tenant cleanup.
func (s *Store) Remove(tenantID string) error {
	filePath, err := s.tenantFile(tenantID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// Root returns the directory backing the store.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) tenantFile(tenantID string) (string, error) {
	trimmed := strings.TrimSpace(tenantID)
	if trimmed == "" {
		return "", fmt.Errorf("tenant id required")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(trimmed))
	return filepath.Join(s.path, fmt.Sprintf("tenant_%s.jsonl", encoded)), nil
}

func decodeTenantFile(name string) (string, bool) {
	if !strings.HasPrefix(name, "tenant_") || !strings.HasSuffix(name, ".jsonl") {
		return "", false
	}
	encoded := strings.TrimSuffix(strings.TrimPrefix(name, "tenant_"), ".jsonl")
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(data), true
}
