package result

import "fmt"

// Result is a single ranked search hit. Immutable once built.
type Result struct {
	id         string
	content    string
	metadata   map[string]any
	similarity float64
	relevance  float64
	collection string
}

// New creates a search result. Scores are clamped to [0, 1].
func New(
	id, content string, metadata map[string]any,
	similarity, relevance float64, collection string,
) Result {
	return Result{
		id: id, content: content, metadata: metadata,
		similarity: clamp01(similarity), relevance: clamp01(relevance),
		collection: collection,
	}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.id }

// Content returns the document content.
func (r *Result) Content() string { return r.content }

// Metadata returns the document metadata.
func (r *Result) Metadata() map[string]any { return r.metadata }

// Similarity returns the vector similarity in [0, 1].
func (r *Result) Similarity() float64 { return r.similarity }

// Relevance returns similarity plus the context bonus, capped at 1.
func (r *Result) Relevance() float64 { return r.relevance }

// Score returns the ranking score results are ordered by. A ranked list is
// non-increasing in Score; with a search context Similarity may not be,
// since the context bonus can lift a more distant document.
func (r *Result) Score() float64 { return r.relevance }

// Collection returns the source collection.
func (r *Result) Collection() string { return r.collection }

// ProcedureType returns the type_ao metadata value, if any.
func (r *Result) ProcedureType() string { return r.str("type_ao") }

// Sector returns the secteur metadata value, if any.
func (r *Result) Sector() string { return r.str("secteur") }

// AmountRange returns the fourchette_montant metadata value, if any.
func (r *Result) AmountRange() string { return r.str("fourchette_montant") }

// IsHighlyRelevant reports a similarity above 0.8.
func (r *Result) IsHighlyRelevant() bool { return r.similarity > 0.8 }

// ConfidenceLevel labels the similarity: Haute, Moyenne or Faible.
func (r *Result) ConfidenceLevel() string {
	switch {
	case r.similarity > 0.8:
		return "Haute"
	case r.similarity > 0.6:
		return "Moyenne"
	default:
		return "Faible"
	}
}

func (r *Result) str(key string) string {
	v, ok := r.metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Candidate is a raw nearest-neighbour hit before ranking.
// Distance is the cosine distance reported by the vector index.
type Candidate struct {
	ID       string
	Content  string
	Metadata map[string]any
	Distance float64
}

// Similarity converts the cosine distance into a similarity in [0, 1].
func (c Candidate) Similarity() float64 { return clamp01(1 - c.Distance) }
