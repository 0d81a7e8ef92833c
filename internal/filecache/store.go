// Package filecache is the durable store behind the schedule pipeline:
// extracted archive files keyed by provider/subCategory/filename, and
// resolved route geometries keyed by their waypoint fingerprint.
package filecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"transitmap/internal/geo"
)

// Store wraps a SQLite database holding cached files and geometries.
// The underlying database is opened lazily on first use.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB // nil until first operation
}

// Stats summarizes the cache contents.
type Stats struct {
	Size int `json:"size"`
}

// New creates a Store backed by the SQLite file at path.
// No I/O happens until the first operation.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// handle opens the database on first call and reuses it afterwards.
func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	s.logger.Info("cache store opened", "path", s.path)
	s.db = db
	return db, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			key          TEXT PRIMARY KEY,
			provider     TEXT NOT NULL,
			sub_category TEXT NOT NULL DEFAULT '',
			filename     TEXT NOT NULL,
			content      TEXT NOT NULL,
			timestamp    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS geometries (
			key       TEXT PRIMARY KEY,
			points    TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);
	`)
	return err
}

// Key derives the composite cache key. An empty subCategory yields a
// two-segment key.
func Key(provider, subCategory, filename string) string {
	if subCategory == "" {
		return provider + "/" + filename
	}
	return provider + "/" + subCategory + "/" + filename
}

// Put stores content under (provider, subCategory, filename), overwriting
// any prior value. Callers treat a returned error as "re-fetch next time",
// never as fatal.
func (s *Store) Put(ctx context.Context, provider, subCategory, filename, content string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (key, provider, sub_category, filename, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		Key(provider, subCategory, filename), provider, subCategory, filename, content,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", Key(provider, subCategory, filename), err)
	}
	return nil
}

// Get returns the cached content for the composite key. Storage failures
// are logged and reported as a miss.
func (s *Store) Get(ctx context.Context, provider, subCategory, filename string) (string, bool) {
	db, err := s.handle()
	if err != nil {
		s.logger.Warn("cache unavailable, treating as miss", "error", err)
		return "", false
	}

	var content string
	err = db.QueryRowContext(ctx,
		`SELECT content FROM files WHERE key = ?`,
		Key(provider, subCategory, filename)).Scan(&content)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.logger.Warn("cache read failed, treating as miss",
			"key", Key(provider, subCategory, filename), "error", err)
		return "", false
	}
	return content, true
}

// Clear removes all file entries whose key begins with provider[/subCategory].
// With an empty provider it empties the store, resolved geometries included.
func (s *Store) Clear(ctx context.Context, provider, subCategory string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if provider == "" {
		if _, err := db.ExecContext(ctx, `DELETE FROM files`); err != nil {
			return fmt.Errorf("clear files: %w", err)
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM geometries`); err != nil {
			return fmt.Errorf("clear geometries: %w", err)
		}
		s.logger.Info("cache cleared")
		return nil
	}

	prefix := provider
	if subCategory != "" {
		prefix += "/" + subCategory
	}
	res, err := db.ExecContext(ctx, `DELETE FROM files WHERE key LIKE ? || '/%'`, prefix)
	if err != nil {
		return fmt.Errorf("clear %s: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("cache cleared", "prefix", prefix, "entries", n)
	return nil
}

// FileStats returns the number of cached file entries.
func (s *Store) FileStats(ctx context.Context) (Stats, error) {
	db, err := s.handle()
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&st.Size); err != nil {
		return Stats{}, fmt.Errorf("count files: %w", err)
	}
	return st, nil
}

// PutGeometry stores a resolved route geometry under its waypoint key.
func (s *Store) PutGeometry(ctx context.Context, key string, points []geo.Point) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO geometries (key, points, timestamp) VALUES (?, ?, ?)`,
		key, string(encoded), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put geometry: %w", err)
	}
	return nil
}

// GetGeometry returns a previously resolved geometry. Storage failures are
// logged and reported as a miss.
func (s *Store) GetGeometry(ctx context.Context, key string) ([]geo.Point, bool) {
	db, err := s.handle()
	if err != nil {
		s.logger.Warn("cache unavailable, treating as miss", "error", err)
		return nil, false
	}

	var encoded string
	err = db.QueryRowContext(ctx, `SELECT points FROM geometries WHERE key = ?`, key).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("geometry read failed, treating as miss", "error", err)
		return nil, false
	}

	var points []geo.Point
	if err := json.Unmarshal([]byte(encoded), &points); err != nil {
		s.logger.Warn("stored geometry is corrupt, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return points, true
}

// Close releases the underlying database if it was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
