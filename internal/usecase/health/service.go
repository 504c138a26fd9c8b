package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the engine cannot serve searches.
	Unhealthy Status = "unhealthy"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Checks keys.
const (
	ComponentDatabase  = "database"
	ComponentEmbedding = "embedding"
	ComponentSearch    = "search"
)

// ProbeQuery is the query of the end-to-end search check.
const ProbeQuery = "test de santé moteur rag"

// Performance summarizes engine activity since start.
type Performance struct {
	Searches     int64
	AvgSearchMs  float64
	CacheHitRate float64
	CostUSD      float64
}

// Report aggregates health check results.
type Report struct {
	Status    Status
	Timestamp time.Time
	Checks    map[string]CheckResult
	// Errors holds the failure message of each failing check.
	Errors           map[string]string
	ProbeResultCount int
	Performance      *Performance
}

// Option configures a Service.
type Option func(*Service)

// WithSearcher enables the end-to-end search check.
func WithSearcher(s Searcher) Option {
	return func(svc *Service) { svc.searcher = s }
}

// WithTelemetry adds a performance summary to reports.
func WithTelemetry(t Telemetry) Option {
	return func(svc *Service) { svc.telemetry = t }
}

// WithClock replaces the clock stamping reports.
func WithClock(c clock.Clock) Option {
	return func(svc *Service) { svc.clock = c }
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	searcher  Searcher
	telemetry Telemetry
	clock     clock.Clock
	logger    *zap.Logger
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{db: db, embedding: embedding, clock: clock.Real(), logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components. The database is
// required: when it fails, or when every check fails, the engine is
// unhealthy; any other failure degrades it.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{
		Timestamp: s.clock.Now().UTC(),
		Checks:    make(map[string]CheckResult),
		Errors:    make(map[string]string),
	}

	s.record(&r, ComponentDatabase, s.db.Ping(ctx))

	if s.embedding != nil {
		s.record(&r, ComponentEmbedding, s.embedding.HealthCheck(ctx))
	}

	if s.searcher != nil {
		n, err := s.probe(ctx)
		r.ProbeResultCount = n
		s.record(&r, ComponentSearch, err)
	}

	failed := len(r.Errors)
	switch {
	case failed == 0:
		r.Status = Healthy
	case r.Checks[ComponentDatabase] == CheckError || failed == len(r.Checks):
		r.Status = Unhealthy
	default:
		r.Status = Degraded
	}

	if s.telemetry != nil {
		snap := s.telemetry.Snapshot()
		r.Performance = &Performance{
			Searches:     snap.Searches,
			AvgSearchMs:  snap.AvgSearchMs,
			CacheHitRate: snap.CacheHitRate,
			CostUSD:      snap.CostUSD,
		}
	}
	return r
}

func (s *Service) probe(ctx context.Context) (int, error) {
	zero := 0.0
	req, err := request.New(ProbeQuery, "", nil, filter.Expression{}, 1, &zero)
	if err != nil {
		return 0, err
	}
	results, err := s.searcher.Search(ctx, &req)
	return len(results), err
}

func (s *Service) record(r *Report, component string, err error) {
	if err != nil {
		r.Checks[component] = CheckError
		r.Errors[component] = err.Error()
		s.logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
		return
	}
	r.Checks[component] = CheckOK
}
