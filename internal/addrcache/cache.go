// Package addrcache persists address resolution results across runs.
// One JSON file holds the whole key→entry map; every write flushes the
// full map so a crash loses at most the in-flight entry.
package addrcache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// Entry is the persisted form of a resolution result. Components is nil
// for an unresolved address; FullAddress then carries the raw input.
type Entry struct {
	FullAddress string                   `json:"full_address"`
	Components  *model.NormalizedAddress `json:"components,omitempty"`
	Source      model.Source             `json:"source,omitempty"`
}

// Resolved reports whether the entry carries a full set of components.
func (e Entry) Resolved() bool {
	return e.Components != nil && e.Components.Complete()
}

// Key returns the cache key for a raw address: SHA-256 hex of the
// lowercased string.
func Key(address string) string {
	h := sha256.Sum256([]byte(strings.ToLower(address)))
	return fmt.Sprintf("%x", h)
}

// Cache is a concurrency-safe key→entry store backed by one JSON file.
// Reads may run in parallel from resolution workers; the write path is
// serialized to preserve the upgrade-only merge rule.
type Cache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]Entry
}

// Load opens the cache at path. A missing or corrupt file is a cold
// start, never an error: poisoning recovery is cheaper than refusing
// to run.
func Load(path string) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("addrcache: unreadable cache file, starting cold",
				zap.String("path", path), zap.Error(err))
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		zap.L().Warn("addrcache: corrupt cache file, starting cold",
			zap.String("path", path), zap.Error(err))
		c.entries = make(map[string]Entry)
		return c
	}

	zap.L().Debug("addrcache: loaded", zap.String("path", path), zap.Int("entries", len(c.entries)))
	return c
}

// Get returns the entry for key, if present.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key and flushes the map to disk. A resolved
// entry is never overwritten by an unresolved one: a transient failure
// must not poison a known-good result.
func (c *Cache) Put(key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok && existing.Resolved() && !entry.Resolved() {
		zap.L().Debug("addrcache: skipping downgrade write", zap.String("key", keyPrefix(key)))
		return nil
	}

	c.entries[key] = entry
	return c.flushLocked()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	return c.path
}

// Clear drops all entries and removes the backing file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "addrcache: remove cache file")
	}
	return nil
}

// flushLocked rewrites the whole map. Write-amplification is accepted
// in exchange for crash safety at batch-run sizes. Caller holds mu.
func (c *Cache) flushLocked() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return eris.Wrap(err, "addrcache: marshal")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "addrcache: create cache dir")
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return eris.Wrap(err, "addrcache: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmpName)    //nolint:errcheck
		return eris.Wrap(err, "addrcache: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "addrcache: close temp file")
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "addrcache: replace cache file")
	}
	return nil
}

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
