// Package sqlite is a file-backed key-value store used to persist
// cached embeddings on local disk.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/scorpius/internal/db"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the database file created inside the cache directory.
const FileName = "embeddings.db"

var _ db.KVLister = (*Store)(nil)

// Store keeps values in a single SQLite table.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger reports best-effort failures such as access-time updates.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates dir if needed and opens (or creates) the database inside it.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a writer is active; busy_timeout
	// absorbs SQLITE_BUSY under concurrent batch write-back.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{db: conn, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored at key and refreshes its access time.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	// Access time only feeds eviction order after restart, so the read still succeeds.
	if _, err := s.db.ExecContext(ctx, `UPDATE kv SET accessed_at = ? WHERE key = ?`, s.now().UnixNano(), key); err != nil {
		s.logger.Warn("Failed to refresh cache access time",
			zap.String("key", key),
			zap.Error(&db.Error{Op: db.OpExec, Err: err}))
	}
	return value, nil
}

// Set inserts or overwrites the value at key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, size, accessed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			size = excluded.size,
			accessed_at = excluded.accessed_at`,
		key, value, len(value), s.now().UnixNano())
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// Del removes keys. Missing keys are not an error.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// ListEntries returns every key starting with prefix, least recently accessed first.
func (s *Store) ListEntries(ctx context.Context, prefix string) ([]db.KVEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, size, accessed_at FROM kv
		WHERE substr(key, 1, ?) = ?
		ORDER BY accessed_at ASC`, len(prefix), prefix)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var out []db.KVEntry
	for rows.Next() {
		var (
			e  db.KVEntry
			ns int64
		)
		if err := rows.Scan(&e.Key, &e.Size, &ns); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		e.AccessedAt = time.Unix(0, ns)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return out, nil
}
