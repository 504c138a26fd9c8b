package collection

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
)

// Count is the document count of one collection.
type Count struct {
	Name        string
	Description string
	Documents   int
	// Err is set when the count could not be read; Documents is then 0.
	Err error
}

// Service manages the collections of the vector store.
type Service struct {
	repo      Repository
	model     string
	vectorDim int
	logger    *zap.Logger
}

// New creates a collection service. New collections record model and
// index vectors of vectorDim.
func New(repo Repository, model string, vectorDim int, logger *zap.Logger) *Service {
	return &Service{repo: repo, model: model, vectorDim: vectorDim, logger: logger}
}

// Ensure creates the collection if it does not exist yet.
func (s *Service) Ensure(ctx context.Context, name, description string) (domcol.Collection, bool, error) {
	col, err := domcol.New(name, description, s.model, s.vectorDim)
	if err != nil {
		return domcol.Collection{}, false, domain.NewValidationError("collection", name, err.Error())
	}

	created, err := s.repo.Ensure(ctx, col)
	if err != nil {
		return domcol.Collection{}, false, fmt.Errorf("ensure collection: %w", err)
	}
	if created {
		s.logger.Info("Collection created", zap.String("collection", name), zap.Int("vector_dim", s.vectorDim))
	}
	return col, created, nil
}

// EnsureDefaults creates every missing default collection and returns the
// names it created. When only is non-empty, defaults outside it are skipped.
func (s *Service) EnsureDefaults(ctx context.Context, only ...string) ([]string, error) {
	var created []string
	for _, d := range domcol.Defaults {
		if len(only) > 0 && !slices.Contains(only, d.Name) {
			continue
		}
		_, ok, err := s.Ensure(ctx, d.Name, d.Description)
		if err != nil {
			return created, fmt.Errorf("default collection %s: %w", d.Name, err)
		}
		if ok {
			created = append(created, d.Name)
		}
	}
	return created, nil
}

// Get retrieves a collection by name.
func (s *Service) Get(ctx context.Context, name string) (domcol.Collection, error) {
	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// List returns all collections.
func (s *Service) List(ctx context.Context) ([]domcol.Collection, error) {
	cols, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// Counts returns the document count of every collection. A failing count
// is reported on its entry rather than failing the whole listing.
func (s *Service) Counts(ctx context.Context) ([]Count, error) {
	cols, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := make([]Count, 0, len(cols))
	for _, col := range cols {
		c := Count{Name: col.Name(), Description: col.Description()}
		n, err := s.repo.Count(ctx, col.Name())
		if err != nil {
			s.logger.Warn("Failed to count collection documents",
				zap.String("collection", col.Name()), zap.Error(err))
			c.Err = err
		} else {
			c.Documents = n
		}
		counts = append(counts, c)
	}
	return counts, nil
}
