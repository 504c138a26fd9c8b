package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/batch"
	"github.com/kailas-cloud/scorpius/internal/metrics"
	"github.com/kailas-cloud/scorpius/internal/ratelimit"
)

// Config tunes batching, concurrency and pacing of provider calls.
type Config struct {
	BatchSize         int
	Concurrency       int
	RequestsPerMinute int // 0 disables pacing
	RetryBackoff      time.Duration
	Timeout           time.Duration // per provider call, 0 means none
	DefaultModel      string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:         100,
		Concurrency:       5,
		RequestsPerMinute: 3000,
		RetryBackoff:      time.Second,
		Timeout:           30 * time.Second,
		DefaultModel:      domain.DefaultModel,
	}
}

// Validate checks the config bounds.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", domain.ErrConfiguration)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive", domain.ErrConfiguration)
	case c.RequestsPerMinute < 0:
		return fmt.Errorf("%w: requests per minute must not be negative", domain.ErrConfiguration)
	case c.RetryBackoff < 0 || c.Timeout < 0:
		return fmt.Errorf("%w: durations must not be negative", domain.ErrConfiguration)
	}
	return nil
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock for pacing and retry waits.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithTracker attaches a telemetry sink.
func WithTracker(t Tracker) Option {
	return func(co *Coordinator) { co.tracker = t }
}

// WithBudget attaches a token budget checked before provider calls.
func WithBudget(b Budget) Option {
	return func(co *Coordinator) { co.budget = b }
}

// Coordinator turns texts into vectors with as few provider calls as possible:
// cache first, duplicates collapsed, misses batched and dispatched concurrently
// under a rate gate.
type Coordinator struct {
	provider domain.Provider
	cache    Cache
	tracker  Tracker
	budget   Budget
	gate     *ratelimit.Gate
	clock    clock.Clock
	cfg      Config
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator. A nil cache disables caching.
func NewCoordinator(
	provider domain.Provider, cache Cache, cfg Config, logger *zap.Logger, opts ...Option,
) (*Coordinator, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", domain.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = domain.DefaultModel
	}
	if cache == nil {
		cache = nopCache{}
	}

	c := &Coordinator{
		provider: provider,
		cache:    cache,
		tracker:  nopTracker{},
		clock:    clock.Real(),
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gate = ratelimit.NewGate(cfg.RequestsPerMinute, c.clock)
	return c, nil
}

// DefaultModel is the model used when callers pass an empty name.
func (c *Coordinator) DefaultModel() string { return c.cfg.DefaultModel }

// Embed returns the vector of a single text.
func (c *Coordinator) Embed(ctx context.Context, text, model string) ([]float32, error) {
	results, err := c.EmbedMany(ctx, []string{text}, model)
	if len(results) == 1 && !results[0].OK() {
		return nil, results[0].Err()
	}
	if err != nil {
		return nil, err
	}
	return results[0].Vector(), nil
}

// pending is one distinct text that missed the cache, with every input
// position it fans back out to.
type pending struct {
	text    string
	indices []int
}

// EmbedMany returns one result per input, in input order. Failures are
// isolated per batch. The error is non-nil when the input is invalid, the
// provider rejected the credentials, ctx ended, or every item failed; in the
// last case the per-item results are returned alongside *domain.AllFailedError.
func (c *Coordinator) EmbedMany(ctx context.Context, texts []string, model string) ([]batch.Result, error) {
	if model == "" {
		model = c.cfg.DefaultModel
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("texts[%d]", i), nil, "must not be blank")
		}
	}
	results := make([]batch.Result, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	misses, hits := c.partition(ctx, texts, model, results)
	domain.UsageFromContext(ctx).AddCacheHits(hits)

	var cost float64
	if len(misses) > 0 {
		var err error
		cost, err = c.dispatch(ctx, misses, model, results)
		if err != nil {
			return nil, err
		}
	}

	c.tracker.OnEmbeddingBatchCompleted(hits, len(misses), cost)

	failed := batch.Failed(results)
	if len(failed) == len(results) {
		return results, &domain.AllFailedError{Count: len(results), First: failed[0].Err()}
	}
	return results, nil
}

// partition fills results for cache hits and returns the distinct misses.
func (c *Coordinator) partition(
	ctx context.Context, texts []string, model string, results []batch.Result,
) ([]pending, int) {
	seen := make(map[string]int, len(texts))
	var distinct []pending
	for i, t := range texts {
		if at, ok := seen[t]; ok {
			distinct[at].indices = append(distinct[at].indices, i)
			continue
		}
		seen[t] = len(distinct)
		distinct = append(distinct, pending{text: t, indices: []int{i}})
	}

	hits := 0
	misses := distinct[:0:0]
	for _, p := range distinct {
		vec, ok := c.cache.Get(ctx, p.text, model)
		if !ok {
			misses = append(misses, p)
			continue
		}
		hits++
		for _, i := range p.indices {
			results[i] = batch.NewVector(i, vec)
		}
	}
	return misses, hits
}

// dispatch embeds misses in concurrent batches and returns the estimated cost.
// Only a provider auth failure or the end of ctx is returned as an error.
func (c *Coordinator) dispatch(
	ctx context.Context, misses []pending, model string, results []batch.Result,
) (float64, error) {
	if c.budget != nil {
		if err := c.budget.Check(ctx); err != nil {
			c.logger.Warn("Embedding budget exhausted",
				zap.String("model", model),
				zap.Int("pending", len(misses)),
				zap.Error(err))
			for _, p := range misses {
				fail(results, p, err)
			}
			return 0, nil
		}
	}

	runID := uuid.NewString()
	chunks := chunk(misses, c.cfg.BatchSize)
	c.logger.Debug("Dispatching embedding batches",
		zap.String("run_id", runID),
		zap.String("model", model),
		zap.Int("texts", len(misses)),
		zap.Int("batches", len(chunks)))

	var (
		mu     sync.Mutex
		tokens int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for n, items := range chunks {
		g.Go(func() error {
			used, err := c.embedBatch(gctx, items, model, results, &mu)
			if err != nil {
				c.logger.Warn("Embedding batch failed",
					zap.String("run_id", runID),
					zap.Int("batch", n),
					zap.Int("size", len(items)),
					zap.Error(err))
				if domain.IsAuth(err) {
					return err
				}
			}
			mu.Lock()
			tokens += used
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("Embedding aborted", zap.String("run_id", runID), zap.Error(err))
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cost := domain.ModelOrDefault(model).EstimateCost(tokens)
	if tokens > 0 {
		metrics.EmbeddingCostUSDTotal.WithLabelValues(model).Add(cost)
		domain.UsageFromContext(ctx).AddTokens(tokens)
		if c.budget != nil {
			c.budget.Record(ctx, int64(tokens))
		}
	}
	return cost, nil
}

// embedBatch runs one provider call with a single retry on retryable
// failures, then writes the outcome of every item. It returns the tokens used.
func (c *Coordinator) embedBatch(
	ctx context.Context, items []pending, model string, results []batch.Result, mu *sync.Mutex,
) (int, error) {
	texts := make([]string, len(items))
	for i, p := range items {
		texts[i] = p.text
	}

	res, err := c.callWithRetry(ctx, texts, model)
	if err != nil {
		mu.Lock()
		for _, p := range items {
			fail(results, p, err)
		}
		mu.Unlock()
		return 0, err
	}

	tokens := res.TotalTokens
	if tokens == 0 {
		for _, t := range texts {
			tokens += domain.EstimateTokens(t)
		}
	}

	ok := make([]bool, len(items))
	for i, p := range items {
		if i < len(res.Vectors) && len(res.Vectors[i]) > 0 {
			c.cache.Put(ctx, p.text, model, res.Vectors[i])
			ok[i] = true
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, p := range items {
		if !ok[i] {
			fail(results, p, fmt.Errorf("%w: no vector for input %d of %d",
				domain.ErrProviderMalformed, i, len(items)))
			continue
		}
		for _, idx := range p.indices {
			results[idx] = batch.NewVector(idx, res.Vectors[i])
		}
	}
	return tokens, nil
}

func (c *Coordinator) callWithRetry(ctx context.Context, texts []string, model string) (domain.ProviderResult, error) {
	for attempt := 0; ; attempt++ {
		if err := c.gate.Wait(ctx); err != nil {
			return domain.ProviderResult{}, err
		}

		res, err := c.call(ctx, texts, model)
		if err == nil {
			metrics.EmbeddingBatchesTotal.WithLabelValues(model, "success").Inc()
			return res, nil
		}
		if attempt > 0 || !domain.IsRetryable(err) || ctx.Err() != nil {
			metrics.EmbeddingBatchesTotal.WithLabelValues(model, "failed").Inc()
			return domain.ProviderResult{}, err
		}

		metrics.EmbeddingBatchesTotal.WithLabelValues(model, "retried").Inc()
		c.logger.Debug("Retrying embedding batch",
			zap.Int("size", len(texts)),
			zap.Duration("backoff", c.cfg.RetryBackoff),
			zap.Bool("rate_limited", domain.IsRateLimited(err)),
			zap.Error(err))
		select {
		case <-c.clock.After(c.cfg.RetryBackoff):
		case <-ctx.Done():
			return domain.ProviderResult{}, ctx.Err()
		}
	}
}

func (c *Coordinator) call(ctx context.Context, texts []string, model string) (domain.ProviderResult, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := c.clock.Now()
	res, err := c.provider.Embed(ctx, texts, model)
	c.tracker.OnEmbeddingCall(model, res.TotalTokens, c.clock.Now().Sub(start), err)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("embedding call timed out after %s: %w", c.cfg.Timeout, err)
	}
	return res, err
}

func fail(results []batch.Result, p pending, err error) {
	for _, idx := range p.indices {
		results[idx] = batch.NewError(idx, "", err)
	}
}

func chunk(items []pending, size int) [][]pending {
	out := make([][]pending, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
