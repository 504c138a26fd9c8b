package collection

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
)

// --- Mocks ---

type mockRepo struct {
	existing  map[string]domcol.Collection
	counts    map[string]int
	ensureErr error
	listErr   error
	countErr  map[string]error
	ensured   []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{existing: map[string]domcol.Collection{}, counts: map[string]int{}}
}

func (m *mockRepo) Ensure(_ context.Context, col domcol.Collection) (bool, error) {
	if m.ensureErr != nil {
		return false, m.ensureErr
	}
	m.ensured = append(m.ensured, col.Name())
	if _, ok := m.existing[col.Name()]; ok {
		return false, nil
	}
	m.existing[col.Name()] = col
	return true, nil
}

func (m *mockRepo) Get(_ context.Context, name string) (domcol.Collection, error) {
	col, ok := m.existing[name]
	if !ok {
		return domcol.Collection{}, &domain.CollectionNotFoundError{Name: name}
	}
	return col, nil
}

func (m *mockRepo) List(_ context.Context) ([]domcol.Collection, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domcol.Collection
	for _, d := range domcol.Defaults {
		if col, ok := m.existing[d.Name]; ok {
			out = append(out, col)
		}
	}
	return out, nil
}

func (m *mockRepo) Count(_ context.Context, name string) (int, error) {
	if err := m.countErr[name]; err != nil {
		return 0, err
	}
	return m.counts[name], nil
}

func newService(repo *mockRepo) *Service {
	return New(repo, domain.DefaultModel, 3072, zap.NewNop())
}

// --- Tests ---

func TestEnsureDefaults_CreatesAllOnce(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo)

	created, err := svc.EnsureDefaults(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != len(domcol.Defaults) {
		t.Fatalf("created = %v", created)
	}
	col := repo.existing[domcol.Reglementaire]
	if col.Description() != domcol.DescriptionOf(domcol.Reglementaire) {
		t.Errorf("Description() = %q", col.Description())
	}
	if col.Model() != domain.DefaultModel || col.VectorDim() != 3072 {
		t.Errorf("model/dim = %q/%d", col.Model(), col.VectorDim())
	}

	again, err := svc.EnsureDefaults(context.Background())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second call created %v", again)
	}
}

func TestEnsureDefaults_StoreError(t *testing.T) {
	repo := newMockRepo()
	repo.ensureErr = errors.New("connection refused")

	_, err := newService(repo).EnsureDefaults(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureDefaults_Subset(t *testing.T) {
	repo := newMockRepo()
	created, err := newService(repo).EnsureDefaults(context.Background(), domcol.HistoriqueAO, "inconnue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0] != domcol.HistoriqueAO {
		t.Fatalf("created = %v", created)
	}
	if _, ok := repo.existing[domcol.Reglementaire]; ok {
		t.Error("defaults outside the subset must be skipped")
	}
}

func TestEnsure_InvalidName(t *testing.T) {
	_, _, err := newService(newMockRepo()).Ensure(context.Background(), "bad name!", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := newService(newMockRepo()).Get(context.Background(), "inconnue")
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestCounts(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo)
	if _, err := svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	repo.counts[domcol.HistoriqueAO] = 42
	repo.countErr = map[string]error{domcol.Reglementaire: errors.New("timeout")}

	counts, err := svc.Counts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counts) != len(domcol.Defaults) {
		t.Fatalf("len = %d", len(counts))
	}
	byName := map[string]Count{}
	for _, c := range counts {
		byName[c.Name] = c
	}
	if byName[domcol.HistoriqueAO].Documents != 42 {
		t.Errorf("historique_ao = %+v", byName[domcol.HistoriqueAO])
	}
	if byName[domcol.Reglementaire].Err == nil {
		t.Error("count error must be reported on the entry")
	}
}

func TestCounts_ListError(t *testing.T) {
	repo := newMockRepo()
	repo.listErr = errors.New("boom")
	if _, err := newService(repo).Counts(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
