// File path: internal/cache/cache.go
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/reglens/reglens/internal/analyzer"
	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/common/telemetry"
)

// Config controls analysis result retention.
type Config struct {
	TTL        time.Duration `json:"-"`
	MaxEntries int           `json:"max_entries"`
}

// DefaultConfig returns the standard cache configuration.
func DefaultConfig() Config {
	return Config{TTL: 4 * time.Hour, MaxEntries: 1024}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = def.MaxEntries
	}
	return c
}

// AnalysisCache memoizes complete analysis results by request fingerprint.
// Concurrent callers with an identical fingerprint share one in-flight
// computation; distinct fingerprints proceed independently. A computation,
// once started, always runs to completion and populates the cache even if
// the caller that started it disconnects.
type AnalysisCache struct {
	cfg   Config
	group singleflight.Group
	lru   *expirable.LRU[string, *analyzer.Result]

	mu      sync.Mutex
	tenants map[string]map[string]struct{}
}

func New(cfg Config) *AnalysisCache {
	c := &AnalysisCache{cfg: cfg.normalized(), tenants: make(map[string]map[string]struct{})}
	c.lru = expirable.NewLRU[string, *analyzer.Result](c.cfg.MaxEntries, c.onEvict, c.cfg.TTL)
	return c
}

// GetOrCompute returns the cached result for fingerprint, or runs compute at
// most once concurrently to produce it. The caller's cancellation aborts its
// own wait but never the shared computation.
func (c *AnalysisCache) GetOrCompute(ctx context.Context, tenantID, fingerprint string, compute func(context.Context) (*analyzer.Result, error)) (*analyzer.Result, error) {
	if result, ok := c.lru.Get(fingerprint); ok {
		telemetry.RecordCacheLookup("hit")
		return result, nil
	}
	ch := c.group.DoChan(fingerprint, func() (interface{}, error) {
		// Detach from the initiating caller so shared waiters are not
		// starved by its disconnect.
		result, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(tenantID, fingerprint, result)
		return result, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			telemetry.RecordCacheLookup("shared")
		} else {
			telemetry.RecordCacheLookup("miss")
		}
		return res.Val.(*analyzer.Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InvalidateTenant drops every cached result belonging to the tenant. Called
// when the tenant's document set (and therefore index version) changes.
func (c *AnalysisCache) InvalidateTenant(tenantID string) {
	c.mu.Lock()
	fingerprints := c.tenants[tenantID]
	delete(c.tenants, tenantID)
	c.mu.Unlock()
	for fingerprint := range fingerprints {
		c.lru.Remove(fingerprint)
	}
	if len(fingerprints) > 0 {
		common.Logger().Debug("cache: tenant invalidated", "tenant", tenantID, "entries", len(fingerprints))
	}
}

// Len reports the number of live cache entries.
func (c *AnalysisCache) Len() int {
	return c.lru.Len()
}

func (c *AnalysisCache) store(tenantID, fingerprint string, result *analyzer.Result) {
	c.lru.Add(fingerprint, result)
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.tenants[tenantID]
	if !ok {
		set = make(map[string]struct{})
		c.tenants[tenantID] = set
	}
	set[fingerprint] = struct{}{}
}

func (c *AnalysisCache) onEvict(fingerprint string, result *analyzer.Result) {
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.tenants[result.TenantID]; ok {
		delete(set, fingerprint)
		if len(set) == 0 {
			delete(c.tenants, result.TenantID)
		}
	}
}
