package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/batch"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	domdoc "github.com/kailas-cloud/scorpius/internal/domain/document"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu     sync.Mutex
	stored []domdoc.Document
	// failIDs fails storage of the named documents.
	failIDs map[string]bool
}

func (r *fakeRepo) AddMany(_ context.Context, _ string, docs []domdoc.Document) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := make([]error, len(docs))
	for i := range docs {
		if r.failIDs[docs[i].ID()] {
			errs[i] = errors.New("connection reset")
			continue
		}
		r.stored = append(r.stored, docs[i])
	}
	return errs
}

type fakeCollections struct {
	col domcol.Collection
	err error
}

func (f *fakeCollections) Get(_ context.Context, name string) (domcol.Collection, error) {
	if f.err != nil {
		return domcol.Collection{}, f.err
	}
	if name != f.col.Name() {
		return domcol.Collection{}, &domain.CollectionNotFoundError{Name: name}
	}
	return f.col, nil
}

type fakeEmbedder struct {
	dim    int
	model  string
	err    error
	failAt map[int]error
	calls  int
}

func (f *fakeEmbedder) DefaultModel() string { return domain.DefaultModel }

func (f *fakeEmbedder) EmbedMany(_ context.Context, texts []string, model string) ([]batch.Result, error) {
	f.calls++
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	out := make([]batch.Result, len(texts))
	failed := 0
	var first error
	for i := range texts {
		if err, ok := f.failAt[i]; ok {
			out[i] = batch.NewError(i, "", err)
			failed++
			if first == nil {
				first = err
			}
			continue
		}
		out[i] = batch.NewVector(i, make([]float32, f.dim))
	}
	if failed == len(texts) {
		return out, &domain.AllFailedError{Count: failed, First: first}
	}
	return out, nil
}

type fakeTracker struct{ added int }

func (f *fakeTracker) OnDocumentsAdded(n int) { f.added += n }

func testCollection(t *testing.T) domcol.Collection {
	t.Helper()
	col, err := domcol.New(domcol.HistoriqueAO, "", "", 4)
	if err != nil {
		t.Fatalf("domcol.New: %v", err)
	}
	return col
}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	embed   *fakeEmbedder
	tracker *fakeTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    &fakeRepo{},
		embed:   &fakeEmbedder{dim: 4},
		tracker: &fakeTracker{},
	}
	f.svc = New(f.repo, &fakeCollections{col: testCollection(t)}, f.embed, zap.NewNop(),
		WithClock(clock.NewFake(testNow)), WithTracker(f.tracker))
	return f
}
