package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kailas-cloud/scorpius/internal/db"
	"github.com/kailas-cloud/scorpius/internal/domain"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	"github.com/kailas-cloud/scorpius/internal/repository/collection"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store        store
	returnFields []string
}

// New creates a search repository.
func New(s store) *Repo {
	fields := []string{collection.FieldContent, collection.FieldMetadata}
	for _, f := range domcol.Fields() {
		fields = append(fields, f.Name())
	}
	return &Repo{store: s, returnFields: fields}
}

// SearchKNN returns up to topK nearest documents of a collection that pass
// filters, nearest first. An unknown collection yields
// *domain.CollectionNotFoundError; any other store failure yields
// *domain.BackendUnavailableError.
func (r *Repo) SearchKNN(
	ctx context.Context, collectionName string,
	vector []float32, filters filter.Expression, topK int,
) ([]result.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    collection.IndexName(collectionName),
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: r.returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, &domain.CollectionNotFoundError{Name: collectionName}
		}
		return nil, &domain.BackendUnavailableError{Op: "search " + collectionName, Err: err}
	}

	return parseKNNResults(sr, collectionName), nil
}

// parseKNNResults converts db.SearchResult into candidates.
func parseKNNResults(sr *db.SearchResult, collectionName string) []result.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := collection.Prefix(collectionName)
	out := make([]result.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		out = append(out, result.Candidate{
			ID:       strings.TrimPrefix(entry.Key, prefix),
			Content:  entry.Fields[collection.FieldContent],
			Metadata: parseMetadata(entry.Fields),
			Distance: entry.Distance,
		})
	}
	return out
}

// parseMetadata prefers the JSON copy, which keeps value types; flat
// index fields fill in when it is absent or unreadable.
func parseMetadata(fields map[string]string) map[string]any {
	if raw := fields[collection.FieldMetadata]; raw != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			return m
		}
	}

	m := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case collection.FieldContent, collection.FieldMetadata, collection.FieldVector:
			continue
		}
		m[k] = v
	}
	return m
}
