// Package cache provides file-backed TTL key-value stores, one per cache
// domain. Reads are pure lookups; all network work happens in callers on
// miss. Corrupt or missing files load as empty, never fail.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// entry wraps a cached value with its write time.
type entry[T any] struct {
	Data      T         `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache is a TTL-keyed persisted map for one cache domain. Entries are
// versioned by full composite key rather than mutated in place, so stale
// cross-process writes can only cause staleness, not corruption.
type Cache[T any] struct {
	mu   sync.RWMutex
	path string
	ttl  time.Duration
	data map[string]entry[T]
	now  func() time.Time
}

// New loads (or creates) the cache file for one domain.
func New[T any](path string, ttl time.Duration) *Cache[T] {
	c := &Cache[T]{
		path: path,
		ttl:  ttl,
		data: make(map[string]entry[T]),
		now:  time.Now,
	}
	c.load()
	return c
}

// WithNow fixes the clock for testing.
func (c *Cache[T]) WithNow(now func() time.Time) *Cache[T] {
	c.now = now
	return c
}

func (c *Cache[T]) load() {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var data map[string]entry[T]
	if err := json.Unmarshal(raw, &data); err != nil {
		zap.L().Warn("cache: corrupt file, starting empty",
			zap.String("path", c.path),
			zap.Error(err),
		)
		return
	}
	c.data = data
}

// Get returns the cached value for key if present and unexpired. It never
// performs network I/O.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.Timestamp) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.Data, true
}

// Set stores a value and persists the whole domain file.
func (c *Cache[T]) Set(key string, val T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = entry[T]{Data: val, Timestamp: c.now()}
	return c.persist()
}

// Values returns every unexpired value, in no particular order.
func (c *Cache[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]T, 0, len(c.data))
	for _, e := range c.data {
		if c.ttl > 0 && now.Sub(e.Timestamp) >= c.ttl {
			continue
		}
		out = append(out, e.Data)
	}
	return out
}

// Len reports the number of entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Prune drops expired entries and persists. Returns the number removed.
func (c *Cache[T]) Prune() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for k, e := range c.data {
		if c.ttl > 0 && now.Sub(e.Timestamp) >= c.ttl {
			delete(c.data, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.persist()
}

// persist writes the map atomically via a temp-file rename. Callers hold mu.
func (c *Cache[T]) persist() error {
	raw, err := json.Marshal(c.data)
	if err != nil {
		return eris.Wrap(err, "cache: marshal")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return eris.Wrap(err, "cache: mkdir")
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrap(err, "cache: write")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return eris.Wrap(err, "cache: rename")
	}
	return nil
}

// Key builds a composite cache key from every parameter that affects the
// result. Empty parts are kept so key positions stay stable.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
