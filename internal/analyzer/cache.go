package analyzer

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/deluair/alphagenome/internal/track"
)

func init() {
	// Metadata values decoded from JSON or YAML inputs.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// CacheKey returns the canonical cache key "chrom:pos:ref:alt".
func CacheKey(chrom string, pos int64, ref, alt string) string {
	return chrom + ":" + strconv.FormatInt(pos, 10) + ":" + ref + ":" + alt
}

// CacheStats reports the state of the result cache.
type CacheStats struct {
	Enabled     bool  `json:"enabled"`
	Entries     int   `json:"entries"`
	ApproxBytes int64 `json:"approx_bytes"`
}

// Cache is an in-memory map from cache key to prediction result. It is safe
// for concurrent use; concurrent writes to the same key are last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{results: make(map[string]*Result)}
}

// Get returns the cached result for key.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[key]
	return r, ok
}

// Put stores a result under key.
func (c *Cache) Put(key string, r *Result) {
	c.mu.Lock()
	c.results[key] = r
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.results = make(map[string]*Result)
	c.mu.Unlock()
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.results))
	for k := range c.results {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Stats returns the entry count and an approximate size in bytes.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := CacheStats{Enabled: true, Entries: len(c.results)}
	for k, r := range c.results {
		st.ApproxBytes += int64(len(k)) + r.approxSize()
	}
	return st
}

// ExportTo writes a gob snapshot of the whole cache to w.
func (c *Cache) ExportTo(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := gob.NewEncoder(w).Encode(c.results); err != nil {
		return fmt.Errorf("encode result cache: %w", err)
	}
	return nil
}

// ImportFrom decodes a gob snapshot from r and replaces the cache contents.
// The cache is left untouched when decoding fails.
func (c *Cache) ImportFrom(r io.Reader) error {
	var data map[string]*Result
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("decode result cache: %w", err)
	}
	if data == nil {
		data = make(map[string]*Result)
	}
	for key, res := range data {
		if res == nil {
			delete(data, key)
			continue
		}
		normalize(res)
	}

	c.mu.Lock()
	c.results = data
	c.mu.Unlock()
	return nil
}

// Export writes the snapshot to path via a temporary file in the same
// directory that is renamed into place.
func (c *Cache) Export(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &CacheIOError{Op: "export", Path: path, Err: err}
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return &CacheIOError{Op: "export", Path: path, Err: err}
	}
	tmp := f.Name()

	if err := c.ExportTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return &CacheIOError{Op: "export", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &CacheIOError{Op: "export", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &CacheIOError{Op: "export", Path: path, Err: err}
	}
	return nil
}

// Import replaces the cache with the snapshot stored at path.
func (c *Cache) Import(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &CacheIOError{Op: "import", Path: path, Err: err}
	}
	defer f.Close()

	if err := c.ImportFrom(f); err != nil {
		return &CacheIOError{Op: "import", Path: path, Err: err}
	}
	return nil
}

// normalize restores empty collections that gob drops on the wire.
func normalize(r *Result) {
	if r.Predictions == nil {
		r.Predictions = make(map[string]AssayPrediction)
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	for _, p := range r.Predictions {
		for _, s := range []*track.Summary{p.Reference, p.Alternate} {
			if s.Recognized() && s.Values == nil {
				s.Values = []float64{}
			}
		}
		if p.Difference != nil && p.Difference.Values == nil {
			p.Difference.Values = []float64{}
		}
	}
}

// IsNotExist reports whether err is a cache import error for a missing file.
func IsNotExist(err error) bool {
	var cerr *CacheIOError
	return errors.As(err, &cerr) && errors.Is(cerr.Err, os.ErrNotExist)
}
