package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/config"
	dbRedis "github.com/kailas-cloud/scorpius/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/scorpius/internal/db/sqlite"
	"github.com/kailas-cloud/scorpius/internal/domain"
	logpkg "github.com/kailas-cloud/scorpius/internal/logger"
	"github.com/kailas-cloud/scorpius/internal/metrics"
	budgetrepo "github.com/kailas-cloud/scorpius/internal/repository/budget"
	collectionrepo "github.com/kailas-cloud/scorpius/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/scorpius/internal/repository/document"
	"github.com/kailas-cloud/scorpius/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/scorpius/internal/repository/search"
	openaiEmb "github.com/kailas-cloud/scorpius/internal/transport/openai"
	collectionuc "github.com/kailas-cloud/scorpius/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/scorpius/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/scorpius/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/scorpius/internal/usecase/health"
	searchuc "github.com/kailas-cloud/scorpius/internal/usecase/search"
	statsuc "github.com/kailas-cloud/scorpius/internal/usecase/stats"
	"github.com/kailas-cloud/scorpius/internal/usecase/tracker"
)

// app is the composition root shared by every command.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	store    *dbRedis.Store
	provider *openaiEmb.Provider
	cache    *embcache.Cache            // nil when disabled
	budget   *embeddinguc.BudgetTracker // nil when no limit is set
	tracker  *tracker.Tracker
	embedder *embeddinguc.Coordinator

	collections *collectionuc.Service
	documents   *documentuc.Service
	search      *searchuc.Service
	stats       *statsuc.Service
	health      *healthuc.Service

	closers []func()
}

func loadConfig() (config.Config, string, error) {
	env := envName
	if env == "" {
		env = config.GetEnv()
	}
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		return cfg, env, err
	}
	cfg, err := config.Load(env)
	return cfg, env, err
}

// newApp loads configuration, connects the stores and wires the services.
func newApp(ctx context.Context) (*app, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{env: env, cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to create database store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, cfg.Database.ReadinessTimeout); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	a.logger.Debug("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	a.tracker = tracker.New(a.logger)
	a.provider = buildProvider(cfg.Embedding, a.logger)

	if err := a.wireCache(ctx); err != nil {
		return err
	}
	a.wireBudget(ctx)

	// Pass nil interfaces (not typed nil pointers!) for disabled parts.
	var cache embeddinguc.Cache
	if a.cache != nil {
		cache = a.cache
	}
	opts := []embeddinguc.Option{embeddinguc.WithTracker(a.tracker)}
	if a.budget != nil {
		opts = append(opts, embeddinguc.WithBudget(a.budget))
	}
	a.embedder, err = embeddinguc.NewCoordinator(a.provider, cache, embeddinguc.Config{
		BatchSize:         cfg.Embedding.BatchSize,
		Concurrency:       cfg.Embedding.Concurrency,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		RetryBackoff:      cfg.Embedding.RetryBackoff,
		Timeout:           cfg.Embedding.Timeout,
		DefaultModel:      cfg.Embedding.Model,
	}, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create embedding coordinator: %w", err)
	}

	dim := cfg.Embedding.Dimensions
	collRepo := collectionrepo.New(store, dim).WithHNSW(collectionrepo.HNSWConfig{
		M:           cfg.Database.HNSWM,
		EFConstruct: cfg.Database.HNSWEFConstruct,
	})

	a.collections = collectionuc.New(collRepo, cfg.Embedding.Model, dim, a.logger)
	a.documents = documentuc.New(documentrepo.New(store), collRepo, a.embedder, a.logger,
		documentuc.WithTracker(a.tracker))
	a.search = searchuc.New(searchrepo.New(store), a.embedder, searchuc.Config{
		Model:        cfg.Embedding.Model,
		Oversample:   cfg.Search.Oversample,
		QueryTimeout: cfg.Database.QueryTimeout,
	}, a.logger, searchuc.WithTracker(a.tracker))
	a.health = healthuc.New(store, a.provider, a.logger,
		healthuc.WithSearcher(a.search), healthuc.WithTelemetry(a.tracker))

	var statsOpts []statsuc.Option
	if a.cache != nil {
		statsOpts = append(statsOpts, statsuc.WithCache(a.cache))
	}
	if a.budget != nil {
		statsOpts = append(statsOpts, statsuc.WithBudget(a.budget))
	}
	a.stats = statsuc.New(a.tracker, a.collections, statsuc.ConfigSummary{
		Environment:       a.env,
		Model:             cfg.Embedding.Model,
		CacheEnabled:      cfg.Cache.Enabled,
		CacheBackend:      cfg.Cache.Backend,
		BatchSize:         cfg.Embedding.BatchSize,
		Concurrency:       cfg.Embedding.Concurrency,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		DefaultCollection: cfg.Search.DefaultCollection,
		MinScore:          cfg.Search.MinScore,
	}, statsOpts...)

	return nil
}

// buildProvider creates the OpenAI client. Dimensions are only sent when
// they shorten the model's native size; older models reject the parameter.
func buildProvider(cfg config.EmbeddingConfig, logger *zap.Logger) *openaiEmb.Provider {
	dims := cfg.Dimensions
	if m, ok := domain.LookupModel(cfg.Model); ok && m.Dimensions == dims {
		dims = 0
	}
	return openaiEmb.NewProvider(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Dimensions: dims,
		Provider:   cfg.Provider,
		Timeout:    cfg.Timeout,
		Logger:     logger,
	})
}

func (a *app) wireCache(ctx context.Context) error {
	cfg := a.cfg.Cache
	if !cfg.Enabled {
		return nil
	}

	var store embcache.Store
	switch cfg.Backend {
	case config.CacheBackendSQLite:
		s, err := dbSQLite.Open(cfg.Dir, dbSQLite.WithLogger(a.logger.Named("cache")))
		if err != nil {
			return fmt.Errorf("failed to open cache directory: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		store = s
	default:
		store = a.store
	}

	cache, err := embcache.New(store, embcache.Config{
		TTL:           cfg.TTL,
		MaxSizeBytes:  cfg.MaxSizeMB << 20,
		MaxEntryBytes: cfg.MaxEntryMB << 20,
		LowWatermark:  cfg.LowWatermark,
	}, a.logger, embcache.WithCounter(metrics.EmbeddingCacheTotal))
	if err != nil {
		return fmt.Errorf("failed to create embedding cache: %w", err)
	}
	a.cache = cache

	// The size cap must account for entries written by earlier runs.
	n, err := cache.Warm(ctx)
	if err != nil {
		a.logger.Warn("Failed to warm embedding cache", zap.Error(err))
	}
	a.logger.Debug("Embedding cache ready",
		zap.String("backend", cfg.Backend), zap.Int("entries", n))
	return nil
}

// wireBudget creates the shared budget tracker backed by Redis counters.
func (a *app) wireBudget(ctx context.Context) {
	cfg := a.cfg.Embedding
	if !cfg.Budget.Enabled() {
		return
	}
	action, err := embeddinguc.ParseBudgetAction(cfg.Budget.Action)
	if err != nil {
		action = embeddinguc.BudgetActionWarn
	}
	a.budget = embeddinguc.NewBudgetTracker(
		cfg.Provider, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, clock.Real(), a.logger,
	).WithStore(ctx, budgetrepo.New(a.store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
}

// Close releases stores in reverse order and flushes the logger.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// withApp runs fn against a wired app bounded by timeout (0 means none).
func withApp(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, a *app) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
