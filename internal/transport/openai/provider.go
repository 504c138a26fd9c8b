package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/metrics"
)

var (
	_ domain.Provider      = (*Provider)(nil)
	_ domain.HealthChecker = (*Provider)(nil)
)

// Provider embeds texts through the OpenAI-compatible embeddings API.
type Provider struct {
	client     *openai.Client
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Dimensions int // 0 keeps the model's native size
	User       string
	Provider   string // metrics label
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewProvider creates an OpenAI-compatible embedding provider.
func NewProvider(cfg *Config) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Provider{
		client:     openai.NewClientWithConfig(clientCfg),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// Embed sends one batch request. Vectors are placed by the index the API
// reports; positions the API skipped are left nil.
func (p *Provider) Embed(ctx context.Context, texts []string, model string) (domain.ProviderResult, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           p.user,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		classified := classify(err)
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, model, errorType(classified)).Inc()
		p.logger.Debug("Embedding request failed",
			zap.String("model", model),
			zap.Int("texts", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(classified))
		return domain.ProviderResult{}, classified
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(p.provider, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(p.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(p.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) || len(d.Embedding) == 0 {
			continue
		}
		vectors[d.Index] = d.Embedding
	}

	return domain.ProviderResult{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", classify(err))
	}
	return nil
}

// classify maps transport failures onto domain.ProviderError kinds.
// Context cancellation is passed through unchanged.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Kind:       kindForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &domain.ProviderError{
			Kind:       kindForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
		}
	}

	// connection refused, reset, DNS and similar
	return &domain.ProviderError{Kind: domain.ProviderTransient, Message: err.Error()}
}

func kindForStatus(status int) domain.ProviderErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ProviderRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ProviderAuth
	case status >= 500 || status == 0 || status == http.StatusRequestTimeout:
		return domain.ProviderTransient
	default:
		return domain.ProviderRejected
	}
}

func errorType(err error) string {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return "canceled"
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
