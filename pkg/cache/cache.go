// Package cache stores compiled images in a SQLite database keyed by a
// hash of the source and the settings that shaped the code.
package cache

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"

	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/memory"
)

var log = commonlog.GetLogger("regc.cache")

// ErrMiss indicates the key has no stored image.
var ErrMiss = errors.New("not in cache")

// Settings are the inputs besides the source that change generated code.
type Settings struct {
	Registers int
	Layout    memory.Layout
	Optimize  bool
	Propagate bool
}

// Key hashes src together with s.
func Key(src string, s Settings) string {
	var b strings.Builder
	b.WriteString("v")
	b.WriteString(strconv.Itoa(isa.ImageVersion))
	fmt.Fprintf(&b, "|r%d|o%t|p%t", s.Registers, s.Optimize, s.Propagate)
	fmt.Fprintf(&b, "|l%d-%d|s%d-%d|a%d-%d",
		s.Layout.Loop.First, s.Layout.Loop.Last,
		s.Layout.Scalars.First, s.Layout.Scalars.Last,
		s.Layout.Arrays.First, s.Layout.Arrays.Last)
	if s.Layout.OversizedBase != nil {
		b.WriteString("|b")
		b.WriteString(s.Layout.OversizedBase.String())
	}
	b.WriteString("|")
	b.WriteString(src)

	sum := xxh3.HashString128(b.String()).Bytes()
	return hex.EncodeToString(sum[:])
}

// Cache is a build cache. It is safe for concurrent use.
type Cache struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens or creates the cache database at dbPath.
func Open(dbPath string) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		key TEXT PRIMARY KEY,
		image BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, dbPath: dbPath}, nil
}

// Path returns the database file.
func (c *Cache) Path() string {
	return c.dbPath
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Put stores img under key, replacing any previous entry.
func (c *Cache) Put(key string, img *isa.Image) error {
	data, err := isa.MarshalImage(img)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO images (key, image, created) VALUES (?, ?, ?)",
		key, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	log.Debugf("stored %s (%d bytes)", key, len(data))
	return nil
}

// Get returns the image stored under key.
func (c *Cache) Get(key string) (*isa.Image, error) {
	var data []byte
	err := c.db.QueryRow("SELECT image FROM images WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	img, err := isa.UnmarshalImage(data)
	if err != nil {
		return nil, err
	}
	log.Debugf("hit %s", key)
	return img, nil
}

// Len returns the number of stored images.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}

// Prune removes entries older than age and returns how many were removed.
func (c *Cache) Prune(age time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.Exec("DELETE FROM images WHERE created < ?", time.Now().Add(-age).Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning: %w", err)
	}
	return res.RowsAffected()
}
