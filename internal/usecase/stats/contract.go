package stats

import (
	"context"

	"github.com/kailas-cloud/scorpius/internal/repository/embcache"
	"github.com/kailas-cloud/scorpius/internal/usecase/collection"
	"github.com/kailas-cloud/scorpius/internal/usecase/embedding"
	"github.com/kailas-cloud/scorpius/internal/usecase/tracker"
)

// Telemetry exposes the in-memory search and embedding counters.
type Telemetry interface {
	Snapshot() tracker.Snapshot
}

// CacheStats exposes embedding cache activity.
type CacheStats interface {
	Stats() embcache.Stats
}

// CollectionCounter lists collections with their document counts.
type CollectionCounter interface {
	Counts(ctx context.Context) ([]collection.Count, error)
}

// BudgetReporter exposes token budget consumption.
type BudgetReporter interface {
	Status() embedding.BudgetStatus
}
