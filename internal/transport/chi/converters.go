package chi

import (
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/procurement"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/domain/search/result"
	collectionuc "github.com/kailas-cloud/scorpius/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/scorpius/internal/usecase/document"
	healthuc "github.com/kailas-cloud/scorpius/internal/usecase/health"
	statsuc "github.com/kailas-cloud/scorpius/internal/usecase/stats"
)

func searchRequestFromDTO(req SearchRequest) (request.Request, error) {
	pctx, err := contextFromDTO(req.Context)
	if err != nil {
		return request.Request{}, err
	}

	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		return request.Request{}, domain.NewValidationError("filters", nil, err.Error())
	}

	limit := request.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	r, err := request.New(req.Query, req.Collection, pctx, filters, limit, req.MinScore)
	if err != nil {
		return request.Request{}, fmt.Errorf("build search request: %w", err)
	}
	return r, nil
}

func contextAnalysisToDTO(c *procurement.Context) *ContextAnalysis {
	if c == nil {
		return nil
	}
	return &ContextAnalysis{
		AmountRange:      c.AmountRange(),
		FormalismLevel:   c.FormalismLevel(),
		PriceSensitivity: c.PriceSensitivity(),
		Keywords:         c.SearchKeywords(),
	}
}

// contextFromDTO normalizes enum spellings; unknown values are rejected.
func contextFromDTO(c *SearchContext) (*procurement.Context, error) {
	if c == nil {
		return nil, nil
	}
	out := &procurement.Context{
		EstimatedAmount: c.EstimatedAmount,
		Organisme:       c.Organisme,
		GeographicScope: c.GeographicScope,
		CriteriaWeights: c.CriteriaWeights,
	}
	if c.AOType != "" {
		p, err := procurement.ParseProcedureType(c.AOType)
		if err != nil {
			return nil, domain.NewValidationError("context.ao_type", c.AOType, err.Error())
		}
		out.ProcedureType = p
	}
	if c.Sector != "" {
		sec, err := procurement.ParseSector(c.Sector)
		if err != nil {
			return nil, domain.NewValidationError("context.sector", c.Sector, err.Error())
		}
		out.Sector = sec
	}
	for _, d := range c.TechnicalDomains {
		td, err := procurement.ParseTechnicalDomain(d)
		if err != nil {
			return nil, domain.NewValidationError("context.technical_domains", d, err.Error())
		}
		out.TechnicalDomains = append(out.TechnicalDomains, td)
	}
	return out, nil
}

func filtersFromDTO(f *FilterExpression) (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}

	must, err := conditionsFromDTO(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromDTO(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromDTO(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionsFromDTO(cs []FilterCondition) ([]filter.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromDTO(c FilterCondition) (filter.Condition, error) {
	set := 0
	if c.Match != nil {
		set++
	}
	if len(c.AnyOf) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	switch {
	case set == 0:
		return filter.Condition{}, errors.New("filter condition must have match, any_of or range")
	case set > 1:
		return filter.Condition{}, fmt.Errorf("filter condition for %q must set only one of match, any_of, range", c.Key)
	}

	switch {
	case c.Match != nil:
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	case len(c.AnyOf) > 0:
		cond, err := filter.NewAnyOf(c.Key, c.AnyOf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("any_of filter: %w", err)
		}
		return cond, nil
	default:
		rf, err := filter.NewRangeFilter(c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
}

func searchResultToDTO(r *result.Result) SearchResultItem {
	return SearchResultItem{
		ID:              r.ID(),
		Content:         r.Content(),
		Metadata:        r.Metadata(),
		Collection:      r.Collection(),
		Similarity:      r.Similarity(),
		Relevance:       r.Relevance(),
		ProcedureType:   r.ProcedureType(),
		Sector:          r.Sector(),
		AmountRange:     r.AmountRange(),
		HighlyRelevant:  r.IsHighlyRelevant(),
		ConfidenceLevel: r.ConfidenceLevel(),
	}
}

func addDocumentsToDTO(rep documentuc.Report) AddDocumentsResponse {
	resp := AddDocumentsResponse{
		Collection:       rep.Collection,
		Added:            rep.Added,
		IDs:              rep.IDs,
		Items:            make([]DocumentResultItem, len(rep.Results)),
		EstimatedCostUSD: rep.EstimatedCostUSD,
		DurationMs:       float64(rep.Duration) / float64(time.Millisecond),
	}
	for i, res := range rep.Results {
		item := DocumentResultItem{Index: res.Index(), ID: res.ID(), Status: string(res.Status())}
		if res.Err() != nil {
			resp.Failed++
			item.Error = &ErrorResponse{Code: errorCodeFor(res.Err()), Message: safeDomainMessage(res.Err())}
		}
		resp.Items[i] = item
	}
	return resp
}

func countsToDTO(counts []collectionuc.Count) []CollectionItem {
	items := make([]CollectionItem, len(counts))
	for i, c := range counts {
		items[i] = CollectionItem{Name: c.Name, Description: c.Description}
		if c.Err != nil {
			items[i].Error = "count unavailable"
			continue
		}
		n := c.Documents
		items[i].DocumentCount = &n
	}
	return items
}

func statsToDTO(r *statsuc.Report) StatsResponse {
	resp := StatsResponse{
		GeneratedAt: r.GeneratedAt,
		Engine: map[string]any{
			"total_searches":        r.Engine.Searches,
			"avg_search_time_ms":    r.Engine.AvgSearchMs,
			"results_returned":      r.Engine.ResultsReturned,
			"total_documents_added": r.Engine.DocumentsAdded,
		},
		Embedding: map[string]any{
			"calls":          r.Embedding.Calls,
			"errors":         r.Embedding.Errors,
			"total_tokens":   r.Embedding.Tokens,
			"total_cost_usd": r.Embedding.CostUSD,
			"cache_hits":     r.Embedding.CacheHits,
			"cache_misses":   r.Embedding.CacheMisses,
			"cache_hit_rate": r.Embedding.CacheHitRate,
		},
		Collections: countsToDTO(r.Collections),
		Config: map[string]any{
			"environment":         r.Config.Environment,
			"embedding_model":     r.Config.Model,
			"cache_enabled":       r.Config.CacheEnabled,
			"cache_backend":       r.Config.CacheBackend,
			"batch_size":          r.Config.BatchSize,
			"concurrency":         r.Config.Concurrency,
			"requests_per_minute": r.Config.RequestsPerMinute,
			"default_collection":  r.Config.DefaultCollection,
			"min_score":           r.Config.MinScore,
		},
		Computed: map[string]any{
			"avg_cost_per_search": r.Computed.AvgCostPerSearch,
			"docs_per_collection": r.Computed.DocsPerCollection,
			"cache_effectiveness": r.Computed.CacheEffectiveness,
		},
	}
	if c := r.Cache; c != nil {
		resp.Cache = &CacheResponse{
			Requests:   c.Requests,
			Hits:       c.Hits,
			Misses:     c.Misses,
			Errors:     c.Errors,
			HitRate:    c.HitRate,
			SavingsUSD: c.SavingsUSD,
			SizeMB:     c.SizeMB(),
			Entries:    c.Entries,
			TTLSeconds: c.TTL.Seconds(),
			MaxSizeMB:  float64(c.MaxSizeBytes) / (1 << 20),
		}
	}
	if b := r.Budget; b != nil {
		resp.Budget = &BudgetResponse{
			Provider:         b.Provider,
			Action:           string(b.Action),
			DailyUsed:        b.DailyUsed,
			DailyLimit:       b.DailyLimit,
			RemainingDaily:   b.RemainingDaily,
			MonthlyUsed:      b.MonthlyUsed,
			MonthlyLimit:     b.MonthlyLimit,
			RemainingMonthly: b.RemainingMonthly,
		}
	}
	return resp
}

func healthToDTO(r *healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	resp := HealthResponse{
		Status:           string(r.Status),
		Timestamp:        r.Timestamp,
		Checks:           checks,
		Errors:           r.Errors,
		ProbeResultCount: r.ProbeResultCount,
	}
	if p := r.Performance; p != nil {
		resp.Performance = map[string]any{
			"total_searches":     p.Searches,
			"avg_search_time_ms": p.AvgSearchMs,
			"cache_hit_rate":     p.CacheHitRate,
			"total_cost_usd":     p.CostUSD,
		}
	}
	return resp
}
