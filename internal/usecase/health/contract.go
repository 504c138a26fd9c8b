package health

import (
	"context"

	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	"github.com/kailas-cloud/scorpius/internal/usecase/tracker"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Searcher runs the end-to-end probe query.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// Telemetry exposes counters for the performance summary.
type Telemetry interface {
	Snapshot() tracker.Snapshot
}
