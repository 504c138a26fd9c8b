package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/scorpius/internal/db"
	domdoc "github.com/kailas-cloud/scorpius/internal/domain/document"
	"github.com/kailas-cloud/scorpius/internal/repository/collection"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) []error
}

// Repo implements usecase/document.Repository.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// AddMany writes documents in one pipeline. The returned slice is aligned
// with docs; a nil entry means the document was stored.
func (r *Repo) AddMany(ctx context.Context, collectionName string, docs []domdoc.Document) []error {
	errs := make([]error, len(docs))
	if len(docs) == 0 {
		return errs
	}

	items := make([]db.HashSetItem, 0, len(docs))
	pos := make([]int, 0, len(docs))
	for i := range docs {
		fields, err := buildHashFields(&docs[i])
		if err != nil {
			errs[i] = fmt.Errorf("encode document %s: %w", docs[i].ID(), err)
			continue
		}
		items = append(items, db.HashSetItem{Key: docKey(collectionName, docs[i].ID()), Fields: fields})
		pos = append(pos, i)
	}
	if len(items) == 0 {
		return errs
	}

	for j, err := range r.store.HSetMulti(ctx, items) {
		if err != nil && j < len(pos) {
			errs[pos[j]] = fmt.Errorf("hset %s: %w", items[j].Key, err)
		}
	}
	return errs
}

func docKey(collectionName, id string) string {
	return collection.Prefix(collectionName) + id
}
