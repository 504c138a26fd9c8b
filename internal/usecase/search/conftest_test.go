package search

import (
	"bytes"
	"context"
	"maps"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/db"
	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	"github.com/kailas-cloud/scorpius/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterRetrievalMetrics()
	os.Exit(m.Run())
}

type mockRepo struct {
	candidates  []result.Candidate
	err         error
	called      bool
	collection  string
	topK        int
	filters     filter.Expression
	hasDeadline bool
}

func (m *mockRepo) SearchKNN(
	ctx context.Context, collectionName string,
	_ []float32, filters filter.Expression, topK int,
) ([]result.Candidate, error) {
	m.called = true
	m.collection = collectionName
	m.topK = topK
	m.filters = filters
	_, m.hasDeadline = ctx.Deadline()
	return m.candidates, m.err
}

type mockEmbedder struct {
	vec      []float32
	err      error
	called   bool
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	m.called = true
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

type mockTracker struct {
	panics bool
	hash   string
	count  int
	calls  int
}

func (m *mockTracker) OnSearchPerformed(queryHash string, resultCount int, _ time.Duration) {
	m.calls++
	m.hash = queryHash
	m.count = resultCount
	if m.panics {
		panic("tracker exploded")
	}
}

func newTestService(repo *mockRepo, emb *mockEmbedder, opts ...Option) *Service {
	return New(repo, emb, DefaultConfig(), zap.NewNop(), opts...)
}

func defaultEmbedder() *mockEmbedder {
	return &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}}
}

func candidate(id string, distance float64, meta map[string]any) result.Candidate {
	return result.Candidate{ID: id, Content: "contenu " + id, Metadata: meta, Distance: distance}
}

// memStore is an in-memory cache store.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = bytes.Clone(value)
	m.sets++
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = bytes.Clone(v)
	}
	return out
}

func sameEntries(a, b map[string][]byte) bool {
	return maps.EqualFunc(a, b, bytes.Equal)
}

// stubProvider returns a fixed vector per text.
type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Embed(_ context.Context, texts []string, _ string) (domain.ProviderResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return domain.ProviderResult{Vectors: vectors, TotalTokens: 3 * len(texts)}, nil
}
