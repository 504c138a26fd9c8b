// Package tracker aggregates search and embedding telemetry in memory for
// the stats report. Every hook is safe for concurrent use and never panics.
package tracker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/metrics"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Searches        int64
	AvgSearchMs     float64
	ResultsReturned int64
	CacheHits       int64
	CacheMisses     int64
	CacheHitRate    float64
	EmbeddingCalls  int64
	EmbeddingErrors int64
	Tokens          int64
	CostUSD         float64
	DocumentsAdded  int64
}

// Tracker implements the search and embedding telemetry hooks.
type Tracker struct {
	mu     sync.Mutex
	snap   Snapshot
	logger *zap.Logger
}

// New creates an empty tracker.
func New(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// OnSearchPerformed records one successful search.
func (t *Tracker) OnSearchPerformed(queryHash string, resultCount int, d time.Duration) {
	defer t.guard("search", zap.String("query_hash", queryHash))

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Searches++
	ms := float64(d) / float64(time.Millisecond)
	// running mean
	t.snap.AvgSearchMs += (ms - t.snap.AvgSearchMs) / float64(t.snap.Searches)
	t.snap.ResultsReturned += int64(max(resultCount, 0))
}

// OnEmbeddingBatchCompleted records the outcome of one coordinator call.
func (t *Tracker) OnEmbeddingBatchCompleted(hits, misses int, costUSD float64) {
	defer t.guard("embedding batch")

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.CacheHits += int64(hits)
	t.snap.CacheMisses += int64(misses)
	t.snap.CostUSD += costUSD
	if total := t.snap.CacheHits + t.snap.CacheMisses; total > 0 {
		t.snap.CacheHitRate = float64(t.snap.CacheHits) / float64(total)
		metrics.CacheHitRatio.Set(t.snap.CacheHitRate)
	}
}

// OnEmbeddingCall records one provider request.
func (t *Tracker) OnEmbeddingCall(model string, tokens int, _ time.Duration, err error) {
	defer t.guard("embedding call", zap.String("model", model))

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.EmbeddingCalls++
	if err != nil {
		t.snap.EmbeddingErrors++
		return
	}
	t.snap.Tokens += int64(tokens)
}

// OnDocumentsAdded records stored documents.
func (t *Tracker) OnDocumentsAdded(n int) {
	defer t.guard("documents added")

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.DocumentsAdded += int64(n)
}

// Snapshot returns a copy of the counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

func (t *Tracker) guard(hook string, fields ...zap.Field) {
	if r := recover(); r != nil {
		t.logger.Warn("Tracker hook failed",
			append(fields, zap.String("hook", hook), zap.Any("panic", r))...)
	}
}
