package embcache

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
)

const model = "text-embedding-3-large"

func TestKey(t *testing.T) {
	a := Key("MAPA  mairie\n de Lyon", model)
	b := Key(" MAPA mairie de Lyon ", model)
	if a != b {
		t.Error("whitespace variants must share a key")
	}
	if a == Key("MAPA mairie de Lyon", "text-embedding-3-small") {
		t.Error("different models must not share a key")
	}
	if a == Key("MAPA mairie de Paris", model) {
		t.Error("different texts must not share a key")
	}
	if !strings.HasPrefix(a, "scorpius:emb_cache:") || len(a) != len(KeyPrefix)+64 {
		t.Errorf("Key() = %q", a)
	}
}

func TestNew_Validation(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := New(nil, cfg, zap.NewNop()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("nil store error = %v", err)
	}
	bad := cfg
	bad.LowWatermark = 1.5
	if _, err := New(newFakeStore(), bad, zap.NewNop()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("watermark error = %v", err)
	}
	bad = cfg
	bad.TTL = -time.Second
	if _, err := New(newFakeStore(), bad, zap.NewNop()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("ttl error = %v", err)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := newFakeStore()
	c, _ := newTestCache(t, s, DefaultConfig())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "cahier des charges", model); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := []float32{0.25, -1, float32(math.Pi)}
	c.Put(ctx, "cahier des charges", model, want)

	got, ok := c.Get(ctx, "cahier  des charges", model)
	if !ok {
		t.Fatal("expected hit")
	}
	for i := range want {
		if math.Float32bits(got[i]) != math.Float32bits(want[i]) {
			t.Fatalf("vector = %v, want %v", got, want)
		}
	}

	st := c.Stats()
	if st.Requests != 2 || st.Hits != 1 || st.Misses != 1 || st.Errors != 0 {
		t.Errorf("stats = %+v", st)
	}
	if st.HitRate != 0.5 {
		t.Errorf("HitRate = %v", st.HitRate)
	}
	if st.Entries != 1 || st.SizeBytes == 0 {
		t.Errorf("size stats = %+v", st)
	}
	// 3 words -> 4 tokens at the 3-large price
	wantSavings := 4 * 0.00013 / 1000
	if math.Abs(st.SavingsUSD-wantSavings) > 1e-15 {
		t.Errorf("SavingsUSD = %v, want %v", st.SavingsUSD, wantSavings)
	}
}

func TestPut_Overwrites(t *testing.T) {
	c, _ := newTestCache(t, newFakeStore(), DefaultConfig())
	ctx := context.Background()

	c.Put(ctx, "q", model, []float32{1})
	c.Put(ctx, "q", model, []float32{2, 3})

	got, ok := c.Get(ctx, "q", model)
	if !ok || len(got) != 2 || got[0] != 2 {
		t.Fatalf("Get() = %v, %v", got, ok)
	}
	if c.Stats().Entries != 1 {
		t.Errorf("Entries = %d, want 1", c.Stats().Entries)
	}
}

func TestGet_TTLExpiry(t *testing.T) {
	s := newFakeStore()
	cfg := DefaultConfig()
	cfg.TTL = time.Hour
	c, fc := newTestCache(t, s, cfg)
	ctx := context.Background()

	c.Put(ctx, "q", model, []float32{1})

	fc.Advance(time.Hour)
	if _, ok := c.Get(ctx, "q", model); !ok {
		t.Fatal("entry exactly at TTL must still hit")
	}

	fc.Advance(time.Nanosecond)
	if _, ok := c.Get(ctx, "q", model); ok {
		t.Fatal("expired entry must miss")
	}
	if s.has(Key("q", model)) {
		t.Error("expired entry must be deleted")
	}
	if st := c.Stats(); st.Errors != 0 || st.Misses != 1 {
		t.Errorf("expiry is a plain miss, stats = %+v", st)
	}
}

func TestGet_CorruptedEntry(t *testing.T) {
	s := newFakeStore()
	c, _ := newTestCache(t, s, DefaultConfig())
	ctx := context.Background()

	key := Key("q", model)
	s.put(key, []byte("garbage that is definitely not an entry"))

	if _, ok := c.Get(ctx, "q", model); ok {
		t.Fatal("corrupted entry must miss")
	}
	if s.has(key) {
		t.Error("corrupted entry must be deleted")
	}
	if st := c.Stats(); st.Errors != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestGet_ModelMismatchIsCorruption(t *testing.T) {
	s := newFakeStore()
	c, _ := newTestCache(t, s, DefaultConfig())

	data, err := encodeEntry(Entry{Vector: []float32{1}, CreatedAt: testStart, Model: "other"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s.put(Key("q", model), data)

	if _, ok := c.Get(context.Background(), "q", model); ok {
		t.Fatal("mismatched model must miss")
	}
	if c.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", c.Stats().Errors)
	}
}

func TestStoreOutage_NeverFails(t *testing.T) {
	s := newFakeStore()
	s.getErr = errStoreDown
	s.setErr = errStoreDown
	c, _ := newTestCache(t, s, DefaultConfig())
	ctx := context.Background()

	c.Put(ctx, "q", model, []float32{1})
	if _, ok := c.Get(ctx, "q", model); ok {
		t.Fatal("outage must read as miss")
	}
	st := c.Stats()
	if st.Errors != 2 || st.Misses != 1 || st.Entries != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPut_EntryTooLarge(t *testing.T) {
	s := newFakeStore()
	cfg := DefaultConfig()
	cfg.MaxEntryBytes = 64
	c, _ := newTestCache(t, s, cfg)

	c.Put(context.Background(), "q", model, vec(100, 1))
	if s.has(Key("q", model)) {
		t.Fatal("oversized entry must not be stored")
	}
	if c.Stats().Errors != 1 {
		t.Errorf("Errors = %d", c.Stats().Errors)
	}
}

func TestPut_EvictsLeastRecentlyUsed(t *testing.T) {
	s := newFakeStore()
	one := int64(encodedSize(Entry{Vector: vec(4, 0), Model: model}))
	cfg := DefaultConfig()
	cfg.MaxSizeBytes = 4 * one
	cfg.LowWatermark = 0.5
	c, _ := newTestCache(t, s, cfg)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "d"} {
		c.Put(ctx, text, model, vec(4, 1))
	}
	// touch a so b becomes the oldest
	if _, ok := c.Get(ctx, "a", model); !ok {
		t.Fatal("expected hit on a")
	}

	c.Put(ctx, "e", model, vec(4, 1)) // 5 entries > cap, evict down to 2

	st := c.Stats()
	if st.Entries != 2 || st.SizeBytes != 2*one {
		t.Fatalf("after eviction: entries=%d size=%d, want 2/%d", st.Entries, st.SizeBytes, 2*one)
	}
	for _, gone := range []string{"b", "c", "d"} {
		if s.has(Key(gone, model)) {
			t.Errorf("%s should have been evicted", gone)
		}
	}
	for _, kept := range []string{"a", "e"} {
		if !s.has(Key(kept, model)) {
			t.Errorf("%s should survive eviction", kept)
		}
	}
}

func TestWarm_RebuildsIndexAndEnforcesCap(t *testing.T) {
	base := newFakeStore()
	ls := &listingStore{fakeStore: base, accessed: map[string]time.Time{}}

	one := int64(encodedSize(Entry{Vector: vec(4, 0), Model: model}))
	for i, text := range []string{"old", "mid", "new"} {
		data, err := encodeEntry(Entry{Vector: vec(4, 1), CreatedAt: testStart, Model: model})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		key := Key(text, model)
		base.put(key, data)
		ls.accessed[key] = testStart.Add(time.Duration(i) * time.Minute)
	}

	cfg := DefaultConfig()
	cfg.MaxSizeBytes = 2 * one
	cfg.LowWatermark = 1
	c, _ := newTestCache(t, ls, cfg)

	n, err := c.Warm(context.Background())
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if n != 3 {
		t.Errorf("Warm() = %d, want 3", n)
	}
	if c.Stats().Entries != 2 {
		t.Errorf("Entries = %d, want 2", c.Stats().Entries)
	}
	if base.has(Key("old", model)) {
		t.Error("least recently accessed entry should be evicted")
	}
}

func TestWarm_WithoutListerIsNoop(t *testing.T) {
	c, _ := newTestCache(t, newFakeStore(), DefaultConfig())
	n, err := c.Warm(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Warm() = %d, %v", n, err)
	}
}

func TestClear(t *testing.T) {
	base := newFakeStore()
	ls := &listingStore{fakeStore: base, accessed: map[string]time.Time{}}
	c, _ := newTestCache(t, ls, DefaultConfig())
	ctx := context.Background()

	c.Put(ctx, "a", model, []float32{1})
	c.Get(ctx, "a", model)
	base.put(Key("persisted", model), []byte("from a previous run"))

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if base.has(Key("a", model)) || base.has(Key("persisted", model)) {
		t.Error("Clear must delete tracked and persisted entries")
	}
	if st := c.Stats(); st != (Stats{TTL: st.TTL, MaxSizeBytes: st.MaxSizeBytes}) {
		t.Errorf("stats not reset: %+v", st)
	}
}

func TestCounter(t *testing.T) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cache_total"}, []string{"result"})
	s := newFakeStore()
	c, err := New(s, DefaultConfig(), zap.NewNop(), WithCounter(cv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	c.Get(ctx, "q", model)
	c.Put(ctx, "q", model, []float32{1})
	c.Get(ctx, "q", model)

	if got := testutil.ToFloat64(cv.WithLabelValues("hit")); got != 1 {
		t.Errorf("hit = %v", got)
	}
	if got := testutil.ToFloat64(cv.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v", got)
	}
}
