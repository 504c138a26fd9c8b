package domain

import (
	"strings"
)

// Model describes an embedding model: output size and price.
type Model struct {
	Name            string
	Dimensions      int
	CostPer1KTokens float64
	MaxInputTokens  int
}

// Known embedding models.
var models = map[string]Model{
	"text-embedding-3-large": {Name: "text-embedding-3-large", Dimensions: 3072, CostPer1KTokens: 0.00013, MaxInputTokens: 8191},
	"text-embedding-3-small": {Name: "text-embedding-3-small", Dimensions: 1536, CostPer1KTokens: 0.00002, MaxInputTokens: 8191},
	"text-embedding-ada-002": {Name: "text-embedding-ada-002", Dimensions: 1536, CostPer1KTokens: 0.0001, MaxInputTokens: 8191},
}

// DefaultModel is used when the configuration names none.
const DefaultModel = "text-embedding-3-large"

// LookupModel returns the catalog entry for name.
func LookupModel(name string) (Model, bool) {
	m, ok := models[name]
	return m, ok
}

// ModelOrDefault returns the catalog entry for name, falling back to the
// default model's pricing for unknown names so cost estimates stay non-zero.
func ModelOrDefault(name string) Model {
	if m, ok := models[name]; ok {
		return m
	}
	m := models[DefaultModel]
	m.Name = name
	m.Dimensions = 0
	return m
}

// EstimateCost converts a token count into USD for the model.
func (m Model) EstimateCost(tokens int) float64 {
	return float64(tokens) / 1000 * m.CostPer1KTokens
}

// EstimateTokens approximates the token count of text as words x 1.3.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words)*1.3 + 0.5)
}
