package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/batch"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	collectionuc "github.com/kailas-cloud/scorpius/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/scorpius/internal/usecase/document"
	healthuc "github.com/kailas-cloud/scorpius/internal/usecase/health"
	statsuc "github.com/kailas-cloud/scorpius/internal/usecase/stats"
)

type fakeSearcher struct {
	results []result.Result
	err     error
	got     *request.Request
	tokens  int
}

func (f *fakeSearcher) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	f.got = req
	domain.UsageFromContext(ctx).AddTokens(f.tokens)
	return f.results, f.err
}

type fakeDocuments struct {
	report     documentuc.Report
	err        error
	collection string
	contents   []string
}

func (f *fakeDocuments) AddDocuments(
	_ context.Context, collectionName string,
	contents []string, _ []map[string]any, _ []string,
) (documentuc.Report, error) {
	f.collection = collectionName
	f.contents = contents
	return f.report, f.err
}

type fakeCollections struct {
	counts []collectionuc.Count
	err    error
}

func (f *fakeCollections) Counts(context.Context) ([]collectionuc.Count, error) {
	return f.counts, f.err
}

type fakeStats struct {
	report statsuc.Report
	err    error
}

func (f *fakeStats) Report(context.Context) (statsuc.Report, error) { return f.report, f.err }

type fakeHealth struct{ report healthuc.Report }

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type fixture struct {
	search      *fakeSearcher
	documents   *fakeDocuments
	collections *fakeCollections
	stats       *fakeStats
	health      *fakeHealth
	handler     http.Handler
}

func newFixture(t *testing.T, apiKeys ...string) *fixture {
	t.Helper()
	f := &fixture{
		search:      &fakeSearcher{},
		documents:   &fakeDocuments{},
		collections: &fakeCollections{},
		stats:       &fakeStats{},
		health: &fakeHealth{report: healthuc.Report{
			Status:    healthuc.Healthy,
			Timestamp: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
			Checks:    map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
		}},
	}
	srv := NewServer(f.search, f.documents, f.collections, f.stats, f.health, zap.NewNop())
	f.handler = NewRouter(srv, apiKeys, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func okResults(ids ...string) []batch.Result {
	out := make([]batch.Result, len(ids))
	for i, id := range ids {
		out[i] = batch.NewOK(i, id)
	}
	return out
}
