package db

import "github.com/kailas-cloud/scorpius/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit, ordered by ascending Distance.
// Distance is the raw vector distance reported by the index.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
