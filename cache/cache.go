// Package cache persists match results between runs. An entry is keyed by
// the digest of the universe a template was matched against and the digest
// of the template source, so a hit is always valid for the same inputs.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/scope"
)

var log = commonlog.GetLogger("classpatch.cache")

// ErrNotFound indicates the requested entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Key identifies one match of a template against a universe.
type Key struct {
	Universe classfile.Digest
	Template classfile.Digest
}

func (k Key) String() string {
	return k.Universe.Short() + "/" + k.Template.Short()
}

// Entry is a cached match result. A nil Snapshot records that the template
// did not match.
type Entry struct {
	Snapshot *scope.Snapshot
	Created  time.Time
}

// Matched reports whether the entry records a match.
func (e *Entry) Matched() bool { return e.Snapshot != nil }

// Cache is a SQLite store of match results.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path, creating parent
// directories as needed. The path ":memory:" opens a private in-memory
// cache.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS matches (
		universe TEXT NOT NULL,
		template TEXT NOT NULL,
		matched  INTEGER NOT NULL,
		data     BLOB,
		created  INTEGER NOT NULL,
		PRIMARY KEY (universe, template)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database path.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Put records the result of matching. A nil snapshot records no match.
func (c *Cache) Put(key Key, snap *scope.Snapshot) error {
	var data []byte
	matched := 0
	if snap != nil {
		var err error
		data, err = scope.MarshalSnapshot(snap)
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		matched = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO matches (universe, template, matched, data, created) VALUES (?, ?, ?, ?, ?)",
		key.Universe.String(), key.Template.String(), matched, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving entry %s: %w", key, err)
	}
	log.Debugf("stored %s (matched=%v)", key, snap != nil)
	return nil
}

// Get loads the entry for key, or returns ErrNotFound.
func (c *Cache) Get(key Key) (*Entry, error) {
	var (
		matched int
		data    []byte
		created int64
	)
	err := c.db.QueryRow(
		"SELECT matched, data, created FROM matches WHERE universe = ? AND template = ?",
		key.Universe.String(), key.Template.String(),
	).Scan(&matched, &data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading entry %s: %w", key, err)
	}

	e := &Entry{Created: time.Unix(created, 0)}
	if matched != 0 {
		e.Snapshot, err = scope.UnmarshalSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", key, err)
		}
	}
	return e, nil
}

// Delete removes the entry for key. Deleting a missing entry is not an error.
func (c *Cache) Delete(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec("DELETE FROM matches WHERE universe = ? AND template = ?",
		key.Universe.String(), key.Template.String())
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", key, err)
	}
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM matches").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Prune removes entries created before cutoff and returns how many were
// removed.
func (c *Cache) Prune(cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM matches WHERE created < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Infof("pruned %d entries from %s", n, c.path)
	return int(n), nil
}
