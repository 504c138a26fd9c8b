package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	"github.com/kailas-cloud/scorpius/internal/usecase/tracker"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

type mockSearcher struct {
	results []result.Result
	err     error
	got     *request.Request
}

func (m *mockSearcher) Search(_ context.Context, req *request.Request) ([]result.Result, error) {
	m.got = req
	return m.results, m.err
}

type mockTelemetry struct{}

func (mockTelemetry) Snapshot() tracker.Snapshot {
	return tracker.Snapshot{Searches: 7, AvgSearchMs: 42, CacheHitRate: 0.5, CostUSD: 0.01}
}

func newService(db, emb error, search *mockSearcher) *Service {
	opts := []Option{WithClock(clock.NewFake(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))}
	if search != nil {
		opts = append(opts, WithSearcher(search))
	}
	return New(&mockDBPinger{err: db}, &mockEmbeddingChecker{err: emb}, zap.NewNop(), opts...)
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	search := &mockSearcher{results: []result.Result{{}}}
	r := newService(nil, nil, search).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentDatabase, ComponentEmbedding, ComponentSearch} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
	if r.ProbeResultCount != 1 {
		t.Errorf("ProbeResultCount = %d", r.ProbeResultCount)
	}
	if search.got.Query() != ProbeQuery || search.got.Limit() != 1 || search.got.MinScore() != 0 {
		t.Errorf("probe request = %q limit %d min %v", search.got.Query(), search.got.Limit(), search.got.MinScore())
	}
	if len(r.Errors) != 0 {
		t.Errorf("Errors = %v", r.Errors)
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	r := newService(nil, errors.New("timeout"), &mockSearcher{}).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentEmbedding] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks[ComponentEmbedding])
	}
	if r.Errors[ComponentEmbedding] != "timeout" {
		t.Errorf("Errors = %v", r.Errors)
	}
}

func TestCheck_SearchError(t *testing.T) {
	r := newService(nil, nil, &mockSearcher{err: errors.New("collection not found")}).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentSearch] != CheckError {
		t.Error("expected search error")
	}
}

func TestCheck_DBErrorIsUnhealthy(t *testing.T) {
	r := newService(errors.New("conn refused"), nil, nil).Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentEmbedding] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_AllFail(t *testing.T) {
	r := newService(errors.New("db down"), errors.New("emb down"), &mockSearcher{err: errors.New("x")}).
		Check(context.Background())
	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if len(r.Errors) != 3 {
		t.Errorf("Errors = %v", r.Errors)
	}
}

func TestCheck_NoEmbedding(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, zap.NewNop())
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentEmbedding]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
	if _, ok := r.Checks[ComponentSearch]; ok {
		t.Error("search check should be absent without a searcher")
	}
	if r.Performance != nil {
		t.Error("performance summary needs telemetry")
	}
}

func TestCheck_PerformanceSummary(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, zap.NewNop(), WithTelemetry(mockTelemetry{}))
	r := svc.Check(context.Background())
	if r.Performance == nil || r.Performance.Searches != 7 || r.Performance.AvgSearchMs != 42 {
		t.Errorf("Performance = %+v", r.Performance)
	}
}
