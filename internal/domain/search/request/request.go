package request

import (
	"strings"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/procurement"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength    = 4096
	MaxLimit          = 100
	DefaultLimit      = 5
	DefaultMinScore   = 0.5
	DefaultCollection = "historique_ao"
)

// Request is a validated search query.
type Request struct {
	query      string
	collection string
	context    *procurement.Context
	filters    filter.Expression
	limit      int
	minScore   float64
}

// New validates and normalizes search parameters.
// An empty collection selects DefaultCollection, a nil minScore DefaultMinScore.
// Limit is not clamped: out-of-range values are rejected.
func New(
	query, collection string,
	ctx *procurement.Context,
	filters filter.Expression,
	limit int,
	minScore *float64,
) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, domain.NewValidationError("query", nil, "query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, domain.NewValidationError("query", len(query), "query too long")
	}
	if limit < 1 || limit > MaxLimit {
		return Request{}, domain.OutOfRange("limit", limit, 1, MaxLimit)
	}
	score := DefaultMinScore
	if minScore != nil {
		score = *minScore
	}
	if score < 0 || score > 1 {
		return Request{}, domain.OutOfRange("min_score", score, 0, 1)
	}
	if err := ctx.Validate(); err != nil {
		return Request{}, err
	}
	if collection == "" {
		collection = DefaultCollection
	}

	return Request{
		query:      query,
		collection: collection,
		context:    ctx,
		filters:    filters,
		limit:      limit,
		minScore:   score,
	}, nil
}

// Query returns the search query text as given by the caller.
func (r *Request) Query() string { return r.query }

// Collection returns the collection to search.
func (r *Request) Collection() string { return r.collection }

// Context returns the tender context, possibly nil.
func (r *Request) Context() *procurement.Context { return r.context }

// Filters returns the caller-supplied metadata filter.
func (r *Request) Filters() filter.Expression { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// MinScore returns the minimum similarity threshold.
func (r *Request) MinScore() float64 { return r.minScore }

// EmbeddingText returns the query enriched with its context.
func (r *Request) EmbeddingText() string { return r.context.EnrichQuery(r.query) }

// Predicate merges the context-derived filter with the caller's filters.
func (r *Request) Predicate() filter.Expression {
	return r.context.Predicate().And(r.filters)
}
