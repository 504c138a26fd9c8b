package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/domain"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	"github.com/kailas-cloud/scorpius/internal/domain/collection/field"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	"github.com/kailas-cloud/scorpius/internal/metrics"
)

// Config tunes candidate retrieval.
type Config struct {
	Model        string        // embedding model for queries, "" uses the embedder default
	Oversample   int           // KNN candidates fetched per requested result
	QueryTimeout time.Duration // vector-store deadline, 0 means none
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Oversample: 2, QueryTimeout: 10 * time.Second}
}

// Option configures a Service.
type Option func(*Service)

// WithTracker attaches a search telemetry sink.
func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithClock replaces the wall clock used to time searches.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Service ranks collection documents against a tender query.
type Service struct {
	repo    Repository
	embed   Embedder
	tracker Tracker
	clock   clock.Clock
	cfg     Config
	logger  *zap.Logger
}

// New creates a search service.
func New(repo Repository, embed Embedder, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.Oversample < 1 {
		cfg.Oversample = 1
	}
	s := &Service{repo: repo, embed: embed, cfg: cfg, clock: clock.Real(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns at most req.Limit() results ordered by non-increasing
// Score(), each with similarity at or above req.MinScore(). Either the full
// ranked list or a single error comes back.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	start := s.clock.Now()

	results, err := s.search(ctx, req)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		s.logger.Debug("Search failed",
			zap.String("collection", req.Collection()),
			zap.Error(err))
		return nil, err
	}

	elapsed := s.clock.Now().Sub(start)
	metrics.SearchesTotal.WithLabelValues("success").Inc()
	metrics.SearchDuration.Observe(elapsed.Seconds())
	metrics.SearchResultsReturned.Observe(float64(len(results)))
	s.track(QueryHash(req.Query()), len(results), elapsed)

	s.logger.Debug("Search completed",
		zap.String("collection", req.Collection()),
		zap.Int("results", len(results)),
		zap.Duration("duration", elapsed))
	return results, nil
}

func (s *Service) search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	if err := validateFiltersAgainstSchema(req.Filters()); err != nil {
		return nil, err
	}

	vector, err := s.embed.Embed(ctx, req.EmbeddingText(), s.cfg.Model)
	if err != nil {
		return nil, &domain.RetrievalError{Err: err}
	}

	qctx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}
	candidates, err := s.repo.SearchKNN(qctx, req.Collection(), vector, req.Predicate(), req.Limit()*s.cfg.Oversample)
	if err != nil {
		return nil, err
	}

	return rank(candidates, req), nil
}

// rank scores candidates, drops those under the similarity floor, sorts by
// relevance (similarity breaks ties) and truncates to the limit.
func rank(candidates []result.Candidate, req *request.Request) []result.Result {
	tender := req.Context()
	out := make([]result.Result, 0, len(candidates))
	for _, c := range candidates {
		sim := c.Similarity()
		if sim < req.MinScore() {
			continue
		}
		relevance := sim
		if tender != nil {
			relevance = min(1, sim+tender.RelevanceBonus(c.Metadata))
		}
		out = append(out, result.New(c.ID, c.Content, c.Metadata, sim, relevance, req.Collection()))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance() != out[j].Relevance() {
			return out[i].Relevance() > out[j].Relevance()
		}
		return out[i].Similarity() > out[j].Similarity()
	})

	if len(out) > req.Limit() {
		out = out[:req.Limit()]
	}
	return out
}

// track forwards to the tracker; telemetry must never fail a search.
func (s *Service) track(queryHash string, n int, d time.Duration) {
	if s.tracker == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Search tracker panicked", zap.Any("panic", r))
		}
	}()
	s.tracker.OnSearchPerformed(queryHash, n, d)
}

// QueryHash identifies a query in telemetry without keeping its text.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}

// validateFiltersAgainstSchema ensures filter fields are indexed and that
// the filter kind (match/any-of vs range) fits the field type (tag/numeric).
func validateFiltersAgainstSchema(expr filter.Expression) error {
	if expr.IsEmpty() {
		return nil
	}
	schema := make(map[string]field.Field)
	for _, f := range domcol.Fields() {
		schema[f.Name()] = f
	}

	groups := [][]filter.Condition{expr.Must(), expr.Should(), expr.MustNot()}
	for _, conditions := range groups {
		for _, c := range conditions {
			f, ok := schema[c.Key()]
			if !ok {
				return domain.NewValidationError("filters", c.Key(), "unknown filter field")
			}
			if kind := conditionKind(c); !f.Supports(kind) {
				return domain.NewValidationError("filters", c.Key(), fmt.Sprintf("%s filter on %s field", kind, f.FieldType()))
			}
		}
	}
	return nil
}

func conditionKind(c filter.Condition) string {
	switch {
	case c.IsAnyOf():
		return field.KindAnyOf
	case c.IsRange():
		return field.KindRange
	default:
		return field.KindMatch
	}
}
