// Package cache provides a file-per-key disk cache used to avoid redundant
// network round-trips (tenant root URL lookups and similar). The cache is an
// optimization, never a dependency: every failure path degrades to a miss,
// and no caller may block on it.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// TTL is how long an entry survives without being read. Eviction is based
// on last-access time, so entries that keep being used never expire.
const TTL = 24 * time.Hour

// FilePerms for cache entry files. Cached values can embed tenant details,
// so keep them owner-only like the token file.
const FilePerms = 0o600

// DirPerms for the cache directory.
const DirPerms = 0o700

// DiskCache stores string values in one file per key under dir.
//
// Eviction is lazy: every Get and Set kicks off a fire-and-forget sweep of
// expired entries instead of relying on a background schedule. A short-lived
// CLI process has no place for a timer, and the directory stays small enough
// that an opportunistic listing is cheap.
type DiskCache struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New returns a DiskCache rooted at dir. The directory is created lazily on
// first Set.
func New(dir string, logger *slog.Logger) *DiskCache {
	return &DiskCache{dir: dir, logger: logger, now: time.Now}
}

// Get returns the cached value for key. The second return is false when no
// entry exists or reading fails for any reason: a cache miss is never an
// error. Reading bumps the entry's access time so hot entries stay alive,
// and triggers a background sweep of expired entries.
func (c *DiskCache) Get(key string) (string, bool) {
	go c.ClearExpired(nil)

	path := c.entryPath(key)

	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Debug("cache miss", slog.String("key", key))
		return "", false
	}

	// Best-effort atime bump: filesystems mounted noatime/relatime would
	// otherwise let a frequently-read entry expire.
	now := c.now()
	_ = os.Chtimes(path, now, now)

	return string(data), true
}

// Set writes value under key, creating the cache directory if needed.
// Best-effort: any failure is swallowed and logged at debug, and a
// background sweep runs regardless.
func (c *DiskCache) Set(key, value string) {
	go c.ClearExpired(nil)

	if err := os.MkdirAll(c.dir, DirPerms); err != nil {
		c.logger.Debug("cache directory unavailable",
			slog.String("dir", c.dir),
			slog.String("error", err.Error()),
		)

		return
	}

	if err := os.WriteFile(c.entryPath(key), []byte(value), FilePerms); err != nil {
		c.logger.Debug("cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// ClearExpired removes every regular file in the cache directory whose last
// access time is older than TTL. Directories are skipped and never removed,
// which allows nested namespacing without risking data loss. Errors on
// individual entries are logged and do not abort the sweep. done, when
// non-nil, fires once every entry has been considered.
func (c *DiskCache) ClearExpired(done func()) {
	if done != nil {
		defer done()
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		// Missing directory means nothing to sweep.
		return
	}

	cutoff := c.now().Add(-TTL)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			c.logger.Debug("cache sweep stat failed",
				slog.String("entry", entry.Name()),
				slog.String("error", err.Error()),
			)

			continue
		}

		if accessTime(info).After(cutoff) {
			continue
		}

		// Deleting an already-deleted file (a concurrent sweep won the
		// race) is a no-op, not an error.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Debug("cache sweep remove failed",
				slog.String("entry", entry.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// entryPath maps a logical key to a file path. Keys are hashed so arbitrary
// strings (resource URLs with slashes and colons) become safe file names.
func (c *DiskCache) entryPath(key string) string {
	sum := sha1.Sum([]byte(key))

	return filepath.Join(c.dir, hex.EncodeToString(sum[:]))
}
