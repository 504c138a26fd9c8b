package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/scorpius/internal/db"
	domdoc "github.com/kailas-cloud/scorpius/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn func(ctx context.Context, items []db.HashSetItem) []error
	items       []db.HashSetItem
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	m.items = append(m.items, items...)
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return make([]error, len(items))
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testDocument(t *testing.T, id string) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New(id, "Marché de maintenance applicative, lot unique", map[string]any{
		"secteur":           "Territorial",
		"type_ao":           "MAPA",
		"montant":           int64(80000),
		"domaine_technique": []string{"Développement", "Support/Maintenance"},
		"organisme":         "Région Bretagne, DSI",
	})
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return doc.WithVector([]float32{0.25, -1, 0.5})
}
