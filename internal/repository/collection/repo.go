package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/scorpius/internal/db"
	"github.com/kailas-cloud/scorpius/internal/domain"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
)

// store is the consumer interface for collections (ISP).
//
//nolint:interfacebloat // collection repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
	IndexDocCount(ctx context.Context, name string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/collection.Repository.
type Repo struct {
	store            store
	defaultVectorDim int
	hnsw             HNSWConfig
}

// New creates a collection repository.
func New(s store, defaultVectorDim int) *Repo {
	return &Repo{store: s, defaultVectorDim: defaultVectorDim, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Ensure creates the collection unless its index already exists.
// created reports whether this call built the index.
func (r *Repo) Ensure(ctx context.Context, col domcol.Collection) (created bool, err error) {
	name := col.Name()
	idxName := IndexName(name)

	exists, err := r.store.IndexExists(ctx, idxName)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", idxName, err)
	}
	if exists {
		return false, r.backfillMeta(ctx, col)
	}

	indexDef, err := buildIndex(col, r.hnsw)
	if err != nil {
		return false, fmt.Errorf("build index: %w", err)
	}

	// Step 1: HSET metadata
	if err := r.store.HSet(ctx, metaKey(name), collectionToHash(col)); err != nil {
		return false, fmt.Errorf("hset collection %s: %w", name, err)
	}

	// FT.CREATE, rollback HSET on error
	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		cleanupErr := r.store.Del(ctx, metaKey(name))
		return false, errors.Join(err, cleanupErr)
	}
	return true, nil
}

// backfillMeta writes metadata for an index created out of band.
func (r *Repo) backfillMeta(ctx context.Context, col domcol.Collection) error {
	ok, err := r.store.Exists(ctx, metaKey(col.Name()))
	if err != nil {
		return fmt.Errorf("check collection %s: %w", col.Name(), err)
	}
	if ok {
		return nil
	}
	if err := r.store.HSet(ctx, metaKey(col.Name()), collectionToHash(col)); err != nil {
		return fmt.Errorf("hset collection %s: %w", col.Name(), err)
	}
	return nil
}

// Get retrieves a collection by name. An index without a metadata hash is
// still a collection; its description falls back to the default set.
func (r *Repo) Get(ctx context.Context, name string) (domcol.Collection, error) {
	m, err := r.store.HGetAll(ctx, metaKey(name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	if len(m) > 0 {
		return collectionFromHash(m, r.defaultVectorDim)
	}

	exists, err := r.store.IndexExists(ctx, IndexName(name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		return domcol.Collection{}, &domain.CollectionNotFoundError{Name: name}
	}
	return domcol.Reconstruct(name, domcol.DescriptionOf(name), "", r.defaultVectorDim, 0), nil
}

// List returns every scorpius collection sorted by CreatedAt, then name.
func (r *Repo) List(ctx context.Context) ([]domcol.Collection, error) {
	indexes, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	collections := make([]domcol.Collection, 0, len(indexes))
	for _, idx := range indexes {
		name, ok := nameFromIndex(idx)
		if !ok {
			continue
		}
		col, err := r.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		collections = append(collections, col)
	}

	sort.Slice(collections, func(i, j int) bool {
		if collections[i].CreatedAt() != collections[j].CreatedAt() {
			return collections[i].CreatedAt() < collections[j].CreatedAt()
		}
		return collections[i].Name() < collections[j].Name()
	})
	return collections, nil
}

// Count returns the number of indexed documents in the collection.
func (r *Repo) Count(ctx context.Context, name string) (int, error) {
	n, err := r.store.IndexDocCount(ctx, IndexName(name))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, &domain.CollectionNotFoundError{Name: name}
		}
		return 0, fmt.Errorf("count collection %s: %w", name, err)
	}
	return n, nil
}

// Redis key patterns: scorpius:collection:{name}, scorpius:{name}:idx, scorpius:{name}:

func metaKey(name string) string {
	return fmt.Sprintf("%scollection:%s", domain.KeyPrefix, name)
}

// IndexName is the FT index backing a collection.
func IndexName(name string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, name)
}

// Prefix is the key prefix of every document hash in a collection.
func Prefix(name string) string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, name)
}

func nameFromIndex(idx string) (string, bool) {
	rest, ok := strings.CutPrefix(idx, domain.KeyPrefix)
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, ":idx")
	if !ok || name == "" || strings.Contains(name, ":") {
		return "", false
	}
	return name, true
}
