package domain

import (
	"context"
)

// KeyPrefix namespaces every key scorpius writes to a shared store.
const KeyPrefix = "scorpius:"

// Provider is the capability every embedding backend exposes.
// Vectors are returned in input order, one per text.
type Provider interface {
	Embed(ctx context.Context, texts []string, model string) (ProviderResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProviderResult carries vectors and token usage for one provider call.
type ProviderResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage and cache hits for a single request.
// The transport puts a pointer into the context; the coordinator writes to it.
type EmbeddingUsage struct {
	TotalTokens int
	CacheHits   int
	Used        bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}

// AddCacheHits records vectors served from the cache.
func (u *EmbeddingUsage) AddCacheHits(n int) {
	if u != nil {
		u.CacheHits += n
		u.Used = true
	}
}
