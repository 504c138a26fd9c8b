package embedding

import (
	"context"
	"time"
)

// Cache stores vectors keyed by (text, model). Implementations never fail
// the caller: lookups degrade to misses, writes are best-effort.
type Cache interface {
	Get(ctx context.Context, text, model string) ([]float32, bool)
	Put(ctx context.Context, text, model string, vector []float32)
}

// Tracker receives per-call embedding telemetry.
type Tracker interface {
	OnEmbeddingBatchCompleted(hits, misses int, costUSD float64)
	OnEmbeddingCall(model string, tokens int, d time.Duration, err error)
}

// Budget gates provider calls on token consumption.
type Budget interface {
	Check(ctx context.Context) error
	Record(ctx context.Context, tokens int64)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, string) ([]float32, bool) { return nil, false }
func (nopCache) Put(context.Context, string, string, []float32)        {}

type nopTracker struct{}

func (nopTracker) OnEmbeddingBatchCompleted(int, int, float64)       {}
func (nopTracker) OnEmbeddingCall(string, int, time.Duration, error) {}
