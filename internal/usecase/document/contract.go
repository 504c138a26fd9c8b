package document

import (
	"context"

	"github.com/kailas-cloud/scorpius/internal/domain/batch"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	domdoc "github.com/kailas-cloud/scorpius/internal/domain/document"
)

// Repository defines the storage contract for documents.
type Repository interface {
	AddMany(ctx context.Context, collectionName string, docs []domdoc.Document) []error
}

// CollectionReader reads collections for existence and vector dimension.
type CollectionReader interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
}

// Embedder vectorizes document contents in bulk.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string, model string) ([]batch.Result, error)
	DefaultModel() string
}

// Tracker counts stored documents.
type Tracker interface {
	OnDocumentsAdded(n int)
}

type nopTracker struct{}

func (nopTracker) OnDocumentsAdded(int) {}
