// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reglens/reglens/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

// MemoryLimitError is returned when a component exceeds the configured
// process memory budget.
type MemoryLimitError struct {
	Component string
	Usage     uint64
	Limit     uint64
}

func (e MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded for %s: %d > %d", e.Component, e.Usage, e.Limit)
}

var (
	initOnce sync.Once

	vectorSearchTotal     *expvar.Int
	vectorSearchLatencyMS *expvar.Int

	analysisTotal     *expvar.Map
	analysisLatencyMS *expvar.Map

	cacheLookupTotal *expvar.Map

	ingestBatchTotal  *expvar.Int
	ingestChunksTotal *expvar.Int

	memoryLimitVar *expvar.Int
	memoryUsageVar *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		vectorSearchTotal = expvar.NewInt("reglens_vector_search_total")
		vectorSearchLatencyMS = expvar.NewInt("reglens_vector_search_latency_ms")

		analysisTotal = expvar.NewMap("reglens_analysis_total")
		analysisLatencyMS = expvar.NewMap("reglens_analysis_latency_ms")

		cacheLookupTotal = expvar.NewMap("reglens_cache_lookup_total")

		ingestBatchTotal = expvar.NewInt("reglens_ingest_batches_total")
		ingestChunksTotal = expvar.NewInt("reglens_ingest_chunks_total")

		memoryLimitVar = expvar.NewInt("reglens_memory_limit_bytes")
		memoryUsageVar = expvar.NewInt("reglens_memory_usage_bytes")
	})
}

func loadMemoryLimit() uint64 {
	if limit := strings.TrimSpace(os.Getenv("REGLENS_MEMORY_LIMIT_BYTES")); limit != "" {
		if value, err := strconv.ParseUint(limit, 10, 64); err == nil {
			return value
		}
	}
	if limitMB := strings.TrimSpace(os.Getenv("REGLENS_MEMORY_LIMIT_MB")); limitMB != "" {
		if value, err := strconv.ParseUint(limitMB, 10, 64); err == nil {
			return value * 1024 * 1024
		}
	}
	return 0
}

// StartSpan records a lightweight tracing span around an operation. The
// returned closure finalizes the span and logs its duration at debug level.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		if sp == nil {
			return
		}
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordVectorSearch counts one index search and its latency.
func RecordVectorSearch(duration time.Duration) {
	ensureInit()
	vectorSearchTotal.Add(1)
	if duration > 0 {
		vectorSearchLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordAnalysis counts one completed compliance analysis, keyed by the path
// that produced it ("llm" or "fallback").
func RecordAnalysis(path string, duration time.Duration) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(path))
	if key == "" {
		key = "unknown"
	}
	analysisTotal.Add(key, 1)
	if duration > 0 {
		analysisLatencyMS.Add(key, duration.Milliseconds())
	}
}

// RecordCacheLookup counts one analysis cache lookup by outcome
// ("hit", "miss", "shared").
func RecordCacheLookup(outcome string) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(outcome))
	if key == "" {
		key = "unknown"
	}
	cacheLookupTotal.Add(key, 1)
}

// RecordIngestBatch counts one ingested document and its chunk total.
func RecordIngestBatch(chunks int) {
	ensureInit()
	if chunks <= 0 {
		return
	}
	ingestBatchTotal.Add(1)
	ingestChunksTotal.Add(int64(chunks))
}

// CheckMemoryBudget fails when process allocation exceeds the configured
// limit. With no limit configured it only refreshes the usage gauge. The
// limit is re-read from the environment on every call.
func CheckMemoryBudget(component string) error {
	ensureInit()
	limit := loadMemoryLimit()
	memoryLimitVar.Set(int64(limit))
	usage := updateMemoryUsage()
	if limit == 0 {
		return nil
	}
	if usage > limit {
		err := MemoryLimitError{Component: component, Usage: usage, Limit: limit}
		common.Logger().Warn("telemetry: memory guard tripped", "component", component, "usage", usage, "limit", limit)
		return err
	}
	return nil
}

func updateMemoryUsage() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	usage := stats.Alloc
	memoryUsageVar.Set(int64(usage))
	return usage
}

// SpanDuration reports the elapsed time of the span carried by ctx, if any.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}
