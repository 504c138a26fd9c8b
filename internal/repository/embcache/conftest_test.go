package embcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/db"
)

var testStart = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory Store. Set getErr/setErr to simulate outages.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	delErr  error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeStore) put(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

// listingStore adds db.KVLister with caller-provided access times.
type listingStore struct {
	*fakeStore
	accessed map[string]time.Time
}

func (l *listingStore) ListEntries(_ context.Context, _ string) ([]db.KVEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]db.KVEntry, 0, len(l.data))
	for k, v := range l.data {
		out = append(out, db.KVEntry{Key: k, Size: int64(len(v)), AccessedAt: l.accessed[k]})
	}
	return out, nil
}

func newTestCache(t *testing.T, s Store, cfg Config) (*Cache, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(testStart)
	c, err := New(s, cfg, zap.NewNop(), WithClock(fc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fc
}

func vec(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}
