// File path: internal/session/store.go
package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reglens/reglens/internal/catalog"
	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/common/telemetry"
	"github.com/reglens/reglens/internal/vector"
)

// Config controls session lifecycle and snapshot cadence.
type Config struct {
	Dimension       int
	InactivityTTL   time.Duration
	PersistInterval time.Duration
}

func DefaultConfig() Config {
	cfg := Config{
		Dimension:       384,
		InactivityTTL:   30 * time.Minute,
		PersistInterval: 5 * time.Minute,
	}
	if raw := strings.TrimSpace(os.Getenv("REGLENS_SESSION_INACTIVITY_TTL")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.InactivityTTL = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("REGLENS_SESSION_PERSIST_INTERVAL")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.PersistInterval = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("REGLENS_EMBED_DIMENSIONS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Dimension = parsed
		}
	}
	return cfg
}

// Stats summarizes one tenant's live session.
type Stats struct {
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
	VectorCount   int    `json:"vector_count"`
	IndexVersion  uint64 `json:"index_version"`
}

// session state is guarded by its own mutex, so operations on one tenant
// never hold a lock another tenant's operations contend on.
type session struct {
	tenantID string

	mu           sync.Mutex
	index        *vector.Index
	docIDs       map[string]struct{}
	version      uint64
	createdAt    time.Time
	lastActivity time.Time
	dirty        bool
	evicted      bool

	hydrateOnce sync.Once
	hydrateErr  error
}

// Store owns one vector index per tenant. Indexes hydrate lazily from the
// catalog snapshot, flush back on a timer, and drop from memory after a
// period of inactivity. Tenants never observe each other's vectors, and the
// store-wide lock protects only the tenant map: index mutation, search, and
// catalog I/O all run outside it.
type Store struct {
	cfg     Config
	catalog *catalog.Store

	mu       sync.Mutex
	sessions map[string]*session

	done chan struct{}
	wg   sync.WaitGroup
}

func NewStore(cfg Config, cat *catalog.Store) *Store {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.InactivityTTL <= 0 {
		cfg.InactivityTTL = 30 * time.Minute
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = 5 * time.Minute
	}
	return &Store{
		cfg:      cfg,
		catalog:  cat,
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
}

// Start launches the background flush and eviction loop.
func (s *Store) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.PersistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.sweep(ctx)
				cancel()
			}
		}
	}()
}

// Close stops the background loop and flushes every dirty session.
func (s *Store) Close(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()
	return s.Flush(ctx)
}

// AddChunks inserts a document's vectors into the tenant's index and returns
// the new index version. The version bumps once per successful batch. The
// memory guard runs before any mutation.
func (s *Store) AddChunks(ctx context.Context, tenantID, docID string, entries []vector.Entry) (uint64, error) {
	if err := telemetry.CheckMemoryBudget("session"); err != nil {
		return 0, err
	}
	for {
		sess, err := s.session(ctx, tenantID)
		if err != nil {
			return 0, err
		}
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		if err := sess.index.Add(entries); err != nil {
			sess.mu.Unlock()
			return 0, err
		}
		if docID != "" {
			sess.docIDs[docID] = struct{}{}
		}
		sess.version++
		sess.dirty = true
		sess.lastActivity = time.Now()
		version := sess.version
		sess.mu.Unlock()
		return version, nil
	}
}

// Search runs a query against the tenant's index and reports the index
// version the results were computed at.
func (s *Store) Search(ctx context.Context, tenantID string, query []float32, k int) ([]vector.Hit, uint64, error) {
	for {
		sess, err := s.session(ctx, tenantID)
		if err != nil {
			return nil, 0, err
		}
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		sess.lastActivity = time.Now()
		index := sess.index
		version := sess.version
		sess.mu.Unlock()

		hits, err := index.Search(query, k)
		if err != nil {
			return nil, 0, err
		}
		return hits, version, nil
	}
}

// Version reports the tenant's current index version.
func (s *Store) Version(ctx context.Context, tenantID string) (uint64, error) {
	for {
		sess, err := s.session(ctx, tenantID)
		if err != nil {
			return 0, err
		}
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		version := sess.version
		sess.mu.Unlock()
		return version, nil
	}
}

// TenantStats reports the live counters for one tenant's session.
func (s *Store) TenantStats(ctx context.Context, tenantID string) (Stats, error) {
	for {
		sess, err := s.session(ctx, tenantID)
		if err != nil {
			return Stats{}, err
		}
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		stats := Stats{
			DocumentCount: len(sess.docIDs),
			ChunkCount:    sess.index.Len(),
			VectorCount:   sess.index.Len(),
			IndexVersion:  sess.version,
		}
		sess.mu.Unlock()
		return stats, nil
	}
}

// Flush persists every dirty session without evicting anything.
func (s *Store) Flush(ctx context.Context) error {
	var firstErr error
	for _, sess := range s.resident() {
		if err := s.flush(ctx, sess); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// session returns the tenant's session, creating and hydrating it on first
// use. The map lock is released before the catalog I/O runs; concurrent
// callers for the same tenant block on the hydration, not on each other's
// tenants. A session whose hydration failed is dropped so the next call
// retries.
func (s *Store) session(ctx context.Context, tenantID string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[tenantID]
	if !ok {
		now := time.Now()
		sess = &session{
			tenantID:     tenantID,
			index:        vector.NewIndex(s.cfg.Dimension),
			docIDs:       make(map[string]struct{}),
			createdAt:    now,
			lastActivity: now,
		}
		s.sessions[tenantID] = sess
	}
	s.mu.Unlock()

	sess.hydrateOnce.Do(func() {
		sess.hydrateErr = s.hydrate(ctx, sess)
	})
	if sess.hydrateErr != nil {
		s.mu.Lock()
		if s.sessions[tenantID] == sess {
			delete(s.sessions, tenantID)
		}
		s.mu.Unlock()
		return nil, sess.hydrateErr
	}
	return sess, nil
}

func (s *Store) hydrate(ctx context.Context, sess *session) error {
	if s.catalog == nil {
		return nil
	}
	blob, version, err := s.catalog.LoadSnapshot(ctx, sess.tenantID)
	if err != nil {
		return fmt.Errorf("hydrate session for %s: %w", sess.tenantID, err)
	}
	if len(blob) == 0 {
		return nil
	}
	restored, err := vector.Restore(blob)
	if err != nil {
		return fmt.Errorf("restore index for %s: %w", sess.tenantID, err)
	}
	records, err := s.catalog.Documents(ctx, sess.tenantID)
	if err != nil {
		return fmt.Errorf("hydrate documents for %s: %w", sess.tenantID, err)
	}
	sess.mu.Lock()
	sess.index = restored
	sess.version = version
	for _, record := range records {
		sess.docIDs[record.ID] = struct{}{}
	}
	sess.mu.Unlock()
	common.Logger().Info("session: restored index", "tenant", sess.tenantID, "vectors", restored.Len(), "version", version)
	return nil
}

// flush persists one session's snapshot if dirty. Only the session's own
// mutex is held across the catalog write.
func (s *Store) flush(ctx context.Context, sess *session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.dirty || s.catalog == nil {
		return nil
	}
	blob, err := sess.index.Persist()
	if err != nil {
		return fmt.Errorf("persist index for %s: %w", sess.tenantID, err)
	}
	if err := s.catalog.SaveSnapshot(ctx, sess.tenantID, sess.version, blob); err != nil {
		return err
	}
	sess.dirty = false
	return nil
}

func (s *Store) resident() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// sweep flushes dirty sessions and evicts idle ones. Flushing runs outside
// the map lock; a session whose flush failed stays dirty and therefore
// resident, so its vectors are not lost. Eviction marks the session so any
// caller still holding a pointer re-resolves a fresh one.
func (s *Store) sweep(ctx context.Context) {
	_ = telemetry.CheckMemoryBudget("session")
	for _, sess := range s.resident() {
		if err := s.flush(ctx, sess); err != nil {
			common.Logger().Warn("session: flush failed", "tenant", sess.tenantID, "error", err)
		}
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for tenantID, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastActivity)
		if !sess.dirty && idle > s.cfg.InactivityTTL {
			sess.evicted = true
			delete(s.sessions, tenantID)
			common.Logger().Info("session: evicted idle tenant", "tenant", tenantID, "idle", idle.Round(time.Second))
		}
		sess.mu.Unlock()
	}
}
