// Package stats assembles the performance report of the retrieval engine.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/repository/embcache"
	"github.com/kailas-cloud/scorpius/internal/usecase/collection"
	"github.com/kailas-cloud/scorpius/internal/usecase/embedding"
)

// ConfigSummary is the part of the configuration worth showing next to the numbers.
type ConfigSummary struct {
	Environment       string
	Model             string
	CacheEnabled      bool
	CacheBackend      string
	BatchSize         int
	Concurrency       int
	RequestsPerMinute int
	DefaultCollection string
	MinScore          float64
}

// EngineStats covers searches and ingestion.
type EngineStats struct {
	Searches        int64
	AvgSearchMs     float64
	ResultsReturned int64
	DocumentsAdded  int64
}

// EmbeddingStats covers provider usage and cost.
type EmbeddingStats struct {
	Calls        int64
	Errors       int64
	Tokens       int64
	CostUSD      float64
	CacheHits    int64
	CacheMisses  int64
	CacheHitRate float64
}

// Computed holds ratios derived from the raw counters.
type Computed struct {
	AvgCostPerSearch   float64
	DocsPerCollection  float64
	CacheEffectiveness float64
}

// Report is the full performance report.
type Report struct {
	GeneratedAt time.Time
	Engine      EngineStats
	Embedding   EmbeddingStats
	Cache       *embcache.Stats         // nil when the cache is disabled
	Budget      *embedding.BudgetStatus // nil when no budget is configured
	Collections []collection.Count
	Config      ConfigSummary
	Computed    Computed
}

// Option configures a Service.
type Option func(*Service)

// WithCache adds cache statistics to the report.
func WithCache(c CacheStats) Option {
	return func(s *Service) { s.cache = c }
}

// WithBudget adds budget consumption to the report.
func WithBudget(b BudgetReporter) Option {
	return func(s *Service) { s.budget = b }
}

// WithClock replaces the clock stamping reports.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Service builds performance reports.
type Service struct {
	telemetry   Telemetry
	collections CollectionCounter
	cache       CacheStats
	budget      BudgetReporter
	cfg         ConfigSummary
	clock       clock.Clock
}

// New creates a stats service.
func New(telemetry Telemetry, collections CollectionCounter, cfg ConfigSummary, opts ...Option) *Service {
	s := &Service{telemetry: telemetry, collections: collections, cfg: cfg, clock: clock.Real()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Report gathers every statistic. Only a failure to list collections is fatal.
func (s *Service) Report(ctx context.Context) (Report, error) {
	snap := s.telemetry.Snapshot()

	counts, err := s.collections.Counts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("collection counts: %w", err)
	}

	r := Report{
		GeneratedAt: s.clock.Now().UTC(),
		Engine: EngineStats{
			Searches:        snap.Searches,
			AvgSearchMs:     snap.AvgSearchMs,
			ResultsReturned: snap.ResultsReturned,
			DocumentsAdded:  snap.DocumentsAdded,
		},
		Embedding: EmbeddingStats{
			Calls:        snap.EmbeddingCalls,
			Errors:       snap.EmbeddingErrors,
			Tokens:       snap.Tokens,
			CostUSD:      snap.CostUSD,
			CacheHits:    snap.CacheHits,
			CacheMisses:  snap.CacheMisses,
			CacheHitRate: snap.CacheHitRate,
		},
		Collections: counts,
		Config:      s.cfg,
	}
	if s.cache != nil {
		cs := s.cache.Stats()
		r.Cache = &cs
	}
	if s.budget != nil {
		bs := s.budget.Status()
		r.Budget = &bs
	}

	r.Computed = Computed{
		AvgCostPerSearch:   snap.CostUSD / float64(max(1, snap.Searches)),
		DocsPerCollection:  float64(snap.DocumentsAdded) / float64(max(1, len(counts))),
		CacheEffectiveness: snap.CacheHitRate,
	}
	return r, nil
}
