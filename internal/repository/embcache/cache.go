// Package embcache persists embedding vectors keyed by normalized text and
// model, with lazy TTL expiry and size-bounded LRU eviction.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/db"
	"github.com/kailas-cloud/scorpius/internal/domain"
)

// KeyPrefix namespaces cache entries in a shared store.
var KeyPrefix = domain.KeyPrefix + "emb_cache:"

// Store is the consumer interface for the backing key-value store (ISP).
// Get must return db.ErrKeyNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
}

// Config bounds the cache.
type Config struct {
	TTL           time.Duration // zero disables expiry
	MaxSizeBytes  int64         // zero disables eviction
	MaxEntryBytes int64
	LowWatermark  float64 // eviction target as a fraction of MaxSizeBytes
}

// DefaultConfig returns a week-long TTL, 1 GiB cap and 10 MiB entry limit.
func DefaultConfig() Config {
	return Config{
		TTL:           7 * 24 * time.Hour,
		MaxSizeBytes:  1 << 30,
		MaxEntryBytes: 10 << 20,
		LowWatermark:  0.8,
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock used for TTL checks.
func WithClock(c clock.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithCounter records lookups on a counter vec labelled "result" (hit, miss, error).
func WithCounter(cv *prometheus.CounterVec) Option {
	return func(cache *Cache) { cache.cacheTotal = cv }
}

// Cache is safe for concurrent use. It never returns storage errors to
// callers: failures are logged and reported as misses.
type Cache struct {
	store      Store
	cfg        Config
	clock      clock.Clock
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu    sync.Mutex
	lru   *simplelru.LRU[string, int64] // key -> encoded size
	total int64
	stats counters
}

type counters struct {
	requests, hits, misses, errors int64
	savings                        float64
}

// New creates a cache over s.
func New(s Store, cfg Config, logger *zap.Logger, opts ...Option) (*Cache, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: cache store is required", domain.ErrConfiguration)
	}
	if cfg.TTL < 0 || cfg.MaxSizeBytes < 0 || cfg.MaxEntryBytes < 0 {
		return nil, fmt.Errorf("%w: cache limits must not be negative", domain.ErrConfiguration)
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > 1 {
		return nil, fmt.Errorf("%w: low watermark must be in (0, 1], got %v", domain.ErrConfiguration, cfg.LowWatermark)
	}

	index, err := simplelru.NewLRU[string, int64](math.MaxInt, nil)
	if err != nil {
		return nil, fmt.Errorf("create lru index: %w", err)
	}

	c := &Cache{
		store:  s,
		cfg:    cfg,
		clock:  clock.Real(),
		logger: logger,
		lru:    index,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key derives the storage key for text under model. Runs of whitespace
// are collapsed first so trivially different spellings share an entry.
func Key(text, model string) string {
	h := sha256.Sum256([]byte(normalize(text) + "|" + model))
	return KeyPrefix + hex.EncodeToString(h[:])
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Get returns the cached vector for (text, model).
func (c *Cache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	key := Key(text, model)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			c.recordMiss(key, false)
			return nil, false
		}
		c.logger.Warn("Failed to read cached embedding",
			zap.Error(&domain.CacheError{Op: domain.CacheOpRead, Key: key, Err: err}))
		c.recordMiss(key, true)
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err == nil && entry.Model != model {
		err = fmt.Errorf("%w: stored for model %q", domain.ErrCacheCorruption, entry.Model)
	}
	if err != nil {
		c.logger.Warn("Dropping corrupted cache entry",
			zap.Error(&domain.CacheError{Op: domain.CacheOpCorrupted, Key: key, Err: err}))
		c.recordMiss(key, true)
		c.remove(ctx, key)
		return nil, false
	}

	if c.cfg.TTL > 0 && c.clock.Now().Sub(entry.CreatedAt) > c.cfg.TTL {
		c.recordMiss(key, false)
		c.remove(ctx, key)
		return nil, false
	}

	saved := domain.ModelOrDefault(model).EstimateCost(domain.EstimateTokens(text))

	c.mu.Lock()
	c.stats.requests++
	c.stats.hits++
	c.stats.savings += saved
	c.trackLocked(key, int64(len(data)))
	c.mu.Unlock()
	c.inc("hit")

	return entry.Vector, true
}

// Put stores vector for (text, model), overwriting any previous entry.
// Oversized entries and store failures are logged and dropped.
func (c *Cache) Put(ctx context.Context, text, model string, vector []float32) {
	key := Key(text, model)
	entry := Entry{Vector: vector, CreatedAt: c.clock.Now(), Model: model}

	if size := int64(encodedSize(entry)); c.cfg.MaxEntryBytes > 0 && size > c.cfg.MaxEntryBytes {
		c.logger.Warn("Embedding too large to cache",
			zap.Error(&domain.CacheError{
				Op:  domain.CacheOpSizeExceeded,
				Key: key,
				Err: fmt.Errorf("%d bytes exceeds limit of %d", size, c.cfg.MaxEntryBytes),
			}))
		c.countError()
		return
	}

	data, err := encodeEntry(entry)
	if err != nil {
		c.logger.Warn("Failed to encode embedding",
			zap.Error(&domain.CacheError{Op: domain.CacheOpWrite, Key: key, Err: err}))
		c.countError()
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("Failed to cache embedding",
			zap.Error(&domain.CacheError{Op: domain.CacheOpWrite, Key: key, Err: err}))
		c.countError()
		return
	}

	c.mu.Lock()
	c.trackLocked(key, int64(len(data)))
	victims := c.evictLocked(key)
	c.mu.Unlock()

	c.deleteVictims(ctx, victims)
}

// Warm rebuilds the LRU index from the store so the size cap holds across
// restarts. It is a no-op for stores that cannot list entries.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	lister, ok := c.store.(db.KVLister)
	if !ok {
		return 0, nil
	}
	entries, err := lister.ListEntries(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].AccessedAt.Before(entries[j].AccessedAt) })

	c.mu.Lock()
	for _, e := range entries {
		c.trackLocked(e.Key, e.Size)
	}
	victims := c.evictLocked("")
	c.mu.Unlock()

	c.deleteVictims(ctx, victims)
	return len(entries), nil
}

// Clear deletes every tracked entry and resets statistics.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	keys := c.lru.Keys()
	c.lru.Purge()
	c.total = 0
	c.stats = counters{}
	c.mu.Unlock()

	if lister, ok := c.store.(db.KVLister); ok {
		entries, err := lister.ListEntries(ctx, KeyPrefix)
		if err != nil {
			return fmt.Errorf("list cache entries: %w", err)
		}
		seen := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		for _, e := range entries {
			if _, dup := seen[e.Key]; !dup {
				keys = append(keys, e.Key)
			}
		}
	}

	const chunk = 500
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		if err := c.store.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return nil
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Requests:     c.stats.requests,
		Hits:         c.stats.hits,
		Misses:       c.stats.misses,
		Errors:       c.stats.errors,
		SavingsUSD:   c.stats.savings,
		SizeBytes:    c.total,
		Entries:      c.lru.Len(),
		TTL:          c.cfg.TTL,
		MaxSizeBytes: c.cfg.MaxSizeBytes,
	}
	if s.Requests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Requests)
	}
	return s
}

func (c *Cache) recordMiss(key string, failed bool) {
	c.mu.Lock()
	c.stats.requests++
	c.stats.misses++
	if failed {
		c.stats.errors++
	}
	c.mu.Unlock()
	if failed {
		c.inc("error")
	}
	c.inc("miss")
}

func (c *Cache) countError() {
	c.mu.Lock()
	c.stats.errors++
	c.mu.Unlock()
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// remove deletes key best-effort and forgets it.
func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.store.Del(ctx, key); err != nil {
		c.logger.Warn("Failed to delete cache entry",
			zap.Error(&domain.CacheError{Op: domain.CacheOpEvictFailed, Key: key, Err: err}))
	}
	c.mu.Lock()
	if size, ok := c.lru.Peek(key); ok {
		c.total -= size
		c.lru.Remove(key)
	}
	c.mu.Unlock()
}

// trackLocked records key as most recently used with the given size.
func (c *Cache) trackLocked(key string, size int64) {
	if old, ok := c.lru.Peek(key); ok {
		c.total -= old
	}
	c.lru.Add(key, size)
	c.total += size
}

// evictLocked pops least recently used keys until the total drops to the
// low watermark. keep is never evicted.
func (c *Cache) evictLocked(keep string) []string {
	if c.cfg.MaxSizeBytes <= 0 || c.total <= c.cfg.MaxSizeBytes {
		return nil
	}
	target := int64(float64(c.cfg.MaxSizeBytes) * c.cfg.LowWatermark)

	var victims []string
	for c.total > target && c.lru.Len() > 0 {
		key, size, ok := c.lru.GetOldest()
		if !ok {
			break
		}
		if key == keep {
			if c.lru.Len() == 1 {
				break
			}
			c.lru.Get(key) // rotate to newest and keep going
			continue
		}
		c.lru.Remove(key)
		c.total -= size
		victims = append(victims, key)
	}
	return victims
}

func (c *Cache) deleteVictims(ctx context.Context, victims []string) {
	if len(victims) == 0 {
		return
	}
	if err := c.store.Del(ctx, victims...); err != nil {
		c.logger.Warn("Failed to evict cache entries",
			zap.Int("count", len(victims)),
			zap.Error(&domain.CacheError{Op: domain.CacheOpEvictFailed, Key: victims[0], Err: err}))
		return
	}
	c.logger.Debug("Evicted cache entries", zap.Int("count", len(victims)))
}
