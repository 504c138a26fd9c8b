package chi

import "time"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeCollectionNotFound ErrorCode = "collection_not_found"
	CodeQuotaExceeded      ErrorCode = "embedding_quota_exceeded"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeProviderError      ErrorCode = "embedding_provider_error"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeRetrievalFailed    ErrorCode = "retrieval_failed"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchContext mirrors procurement.Context on the wire.
type SearchContext struct {
	AOType           string         `json:"ao_type,omitempty"`
	Sector           string         `json:"sector,omitempty"`
	EstimatedAmount  *int64         `json:"estimated_amount,omitempty"`
	TechnicalDomains []string       `json:"technical_domains,omitempty"`
	Organisme        string         `json:"organisme,omitempty"`
	GeographicScope  string         `json:"geographic_scope,omitempty"`
	CriteriaWeights  map[string]int `json:"criteria_weights,omitempty"`
}

// RangeFilter bounds a numeric metadata key.
type RangeFilter struct {
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// FilterCondition constrains one metadata key. Exactly one of Match, AnyOf
// or Range must be set.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	AnyOf []string     `json:"any_of,omitempty"`
	Range *RangeFilter `json:"range,omitempty"`
}

// FilterExpression is a boolean metadata filter.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query      string            `json:"query"`
	Collection string            `json:"collection,omitempty"`
	Context    *SearchContext    `json:"context,omitempty"`
	Limit      *int              `json:"limit,omitempty"`
	MinScore   *float64          `json:"min_score,omitempty"`
	Filters    *FilterExpression `json:"filters,omitempty"`
}

// SearchResultItem is one ranked hit.
type SearchResultItem struct {
	ID              string         `json:"id"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Collection      string         `json:"collection"`
	Similarity      float64        `json:"similarity"`
	Relevance       float64        `json:"relevance"`
	ProcedureType   string         `json:"type_ao,omitempty"`
	Sector          string         `json:"secteur,omitempty"`
	AmountRange     string         `json:"fourchette_montant,omitempty"`
	HighlyRelevant  bool           `json:"highly_relevant"`
	ConfidenceLevel string         `json:"confidence_level"`
}

// SearchResponse is the body returned by a search.
type SearchResponse struct {
	Items      []SearchResultItem `json:"items"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Collection string             `json:"collection"`
	Analysis   *ContextAnalysis   `json:"analysis,omitempty"`
}

// ContextAnalysis describes the tender context the search was run with.
type ContextAnalysis struct {
	AmountRange      string   `json:"amount_range"`
	FormalismLevel   string   `json:"formalism_level"`
	PriceSensitivity float64  `json:"price_sensitivity"`
	Keywords         []string `json:"keywords,omitempty"`
}

// AddDocumentsRequest is the body of POST /v1/collections/{collection}/documents.
type AddDocumentsRequest struct {
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
}

// DocumentResultItem is the outcome for one submitted document.
type DocumentResultItem struct {
	Index  int            `json:"index"`
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// AddDocumentsResponse reports an ingestion.
type AddDocumentsResponse struct {
	Collection       string               `json:"collection"`
	Added            int                  `json:"added"`
	Failed           int                  `json:"failed"`
	IDs              []string             `json:"ids"`
	Items            []DocumentResultItem `json:"items"`
	EstimatedCostUSD float64              `json:"estimated_cost_usd"`
	DurationMs       float64              `json:"duration_ms"`
}

// CollectionItem describes a collection with its size.
type CollectionItem struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount *int   `json:"document_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CollectionListResponse is the body of GET /v1/collections.
type CollectionListResponse struct {
	Items []CollectionItem `json:"items"`
}

// BudgetResponse reports token budget consumption.
type BudgetResponse struct {
	Provider         string `json:"provider"`
	Action           string `json:"action"`
	DailyUsed        int64  `json:"daily_used"`
	DailyLimit       int64  `json:"daily_limit"`
	RemainingDaily   int64  `json:"remaining_daily"`
	MonthlyUsed      int64  `json:"monthly_used"`
	MonthlyLimit     int64  `json:"monthly_limit"`
	RemainingMonthly int64  `json:"remaining_monthly"`
}

// CacheResponse reports embedding cache activity.
type CacheResponse struct {
	Requests   int64   `json:"requests"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Errors     int64   `json:"errors"`
	HitRate    float64 `json:"hit_rate"`
	SavingsUSD float64 `json:"savings_usd"`
	SizeMB     float64 `json:"size_mb"`
	Entries    int     `json:"entries"`
	TTLSeconds float64 `json:"ttl_seconds"`
	MaxSizeMB  float64 `json:"max_size_mb"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Engine      map[string]any   `json:"engine"`
	Embedding   map[string]any   `json:"embedding"`
	Cache       *CacheResponse   `json:"cache,omitempty"`
	Budget      *BudgetResponse  `json:"budget,omitempty"`
	Collections []CollectionItem `json:"collections"`
	Config      map[string]any   `json:"config"`
	Computed    map[string]any   `json:"computed_metrics"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string            `json:"status"`
	Timestamp        time.Time         `json:"timestamp"`
	Checks           map[string]string `json:"checks"`
	Errors           map[string]string `json:"errors,omitempty"`
	ProbeResultCount int               `json:"probe_result_count"`
	Performance      map[string]any    `json:"performance_summary,omitempty"`
}
