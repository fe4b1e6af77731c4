package llm

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"attngrader/internal/logging"
)

// VerdictCache persists judge verdicts in SQLite keyed by content hash.
// Entries expire after the configured TTL; expired and corrupt rows are
// evicted on read. Grading runs of unchanged code then cost no provider
// calls at all.
//
// Known limitation: the cache file is not locked across processes, so
// concurrent grading of the same notebook from two processes may race on
// writes. Last write wins; both writes carry the same verdict content.
type VerdictCache struct {
	db  *sql.DB
	ttl time.Duration

	// Injectable clock for tests.
	now func() time.Time
}

// OpenVerdictCache opens (creating if needed) the cache database at path.
func OpenVerdictCache(path string, ttl time.Duration) (*VerdictCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Cache("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Cache("failed to set journal_mode=WAL: %v", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS verdicts (
		cache_key  TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		payload    TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &VerdictCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached verdict for key if present and not expired.
func (c *VerdictCache) Get(key string) (*Verdict, bool) {
	var createdAt int64
	var payload string
	err := c.db.QueryRow("SELECT created_at, payload FROM verdicts WHERE cache_key = ?", key).Scan(&createdAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		logging.Cache("cache read failed for %s: %v", key, err)
		return nil, false
	}

	if c.now().Sub(time.Unix(createdAt, 0)) > c.ttl {
		c.evict(key)
		return nil, false
	}

	var v Verdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		logging.Cache("corrupt cache entry %s evicted: %v", key, err)
		c.evict(key)
		return nil, false
	}
	return &v, true
}

// Set stores a verdict under key, stamped with the current time.
func (c *VerdictCache) Set(key string, v *Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}
	_, err = c.db.Exec(
		"INSERT INTO verdicts (cache_key, created_at, payload) VALUES (?, ?, ?) "+
			"ON CONFLICT(cache_key) DO UPDATE SET created_at = excluded.created_at, payload = excluded.payload",
		key, c.now().Unix(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to store verdict: %w", err)
	}
	return nil
}

// Clear removes every cached verdict.
func (c *VerdictCache) Clear() error {
	_, err := c.db.Exec("DELETE FROM verdicts")
	return err
}

// Close releases the underlying database.
func (c *VerdictCache) Close() error { return c.db.Close() }

func (c *VerdictCache) evict(key string) {
	if _, err := c.db.Exec("DELETE FROM verdicts WHERE cache_key = ?", key); err != nil {
		logging.Cache("failed to evict %s: %v", key, err)
	}
}
