package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	healthuc "github.com/kailas-cloud/scorpius/internal/usecase/health"
)

// maxDocumentsPerRequest caps one ingestion call.
const maxDocumentsPerRequest = 1000

// Server serves the retrieval API.
type Server struct {
	search        Searcher
	documents     DocumentAdder
	collections   CollectionCounter
	stats         StatsReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler

	defaultCollection string
	defaultMinScore   *float64
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	documents DocumentAdder,
	collections CollectionCounter,
	stats StatsReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:        search,
		documents:     documents,
		collections:   collections,
		stats:         stats,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithSearchDefaults sets the collection and minimum score applied when a
// search request names neither.
func (s *Server) WithSearchDefaults(collection string, minScore float64) *Server {
	s.defaultCollection = collection
	s.defaultMinScore = &minScore
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/collections", s.ListCollections)
		r.Post("/collections/{collection}/search", s.Search)
		r.Post("/collections/{collection}/documents", s.AddDocuments)
		r.Get("/stats", s.Stats)
	})
}

// Search handles POST /v1/search and POST /v1/collections/{collection}/search.
// A collection in the path wins over the one in the body.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if c := chi.URLParam(r, "collection"); c != "" {
		body.Collection = c
	}
	if body.Collection == "" {
		body.Collection = s.defaultCollection
	}
	if body.MinScore == nil {
		body.MinScore = s.defaultMinScore
	}

	req, err := searchRequestFromDTO(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToDTO(&results[i])
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Items:      items,
		Total:      len(items),
		Limit:      req.Limit(),
		Collection: req.Collection(),
		Analysis:   contextAnalysisToDTO(req.Context()),
	})
}

// AddDocuments handles POST /v1/collections/{collection}/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var body AddDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(body.Documents) > maxDocumentsPerRequest {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("documents count must be at most %d", maxDocumentsPerRequest))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.documents.AddDocuments(ctx, collection, body.Documents, body.Metadatas, body.IDs)
	if err != nil && report.Results == nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := addDocumentsToDTO(report)
	status := http.StatusCreated
	switch {
	case err != nil:
		// every document failed; the per-item report still goes back
		status = s.statusFor(err)
	case resp.Failed > 0:
		status = http.StatusMultiStatus
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, status, resp)
}

// ListCollections handles GET /v1/collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	counts, err := s.collections.Counts(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Items: countsToDTO(counts)})
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := s.stats.Report(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToDTO(&report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthToDTO(&report))
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
		w.Header().Set("X-Embedding-Cache-Hits", strconv.Itoa(usage.CacheHits))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
