package chi

import (
	"context"

	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	collectionuc "github.com/kailas-cloud/scorpius/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/scorpius/internal/usecase/document"
	healthuc "github.com/kailas-cloud/scorpius/internal/usecase/health"
	statsuc "github.com/kailas-cloud/scorpius/internal/usecase/stats"
)

// Searcher runs ranked searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// DocumentAdder ingests documents.
type DocumentAdder interface {
	AddDocuments(
		ctx context.Context, collectionName string,
		contents []string, metadatas []map[string]any, ids []string,
	) (documentuc.Report, error)
}

// CollectionCounter lists collections with their document counts.
type CollectionCounter interface {
	Counts(ctx context.Context) ([]collectionuc.Count, error)
}

// StatsReporter builds the performance report.
type StatsReporter interface {
	Report(ctx context.Context) (statsuc.Report, error)
}

// HealthChecker runs the health checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
