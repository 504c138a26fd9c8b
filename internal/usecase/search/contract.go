package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
)

// Repository runs nearest-neighbour queries against a collection.
type Repository interface {
	SearchKNN(
		ctx context.Context, collectionName string,
		vector []float32, filters filter.Expression, topK int,
	) ([]result.Candidate, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// Tracker receives one event per successful search.
type Tracker interface {
	OnSearchPerformed(queryHash string, resultCount int, d time.Duration)
}
