// Package assets serves the static single-page application from memory.
//
// Files are read from a backing fs.FS (os.DirFS of the public directory in
// production) and memoized by their path relative to that root.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-gateway/internal/observability"
)

// ErrNotFound is returned when an asset does not exist in the backing store.
var ErrNotFound = errors.New("asset not found")

// Cache is an in-memory map of asset path to file bytes.
// Entries are never evicted; a refresh requires a process restart.
type Cache struct {
	store fs.FS

	mu    sync.RWMutex
	files map[string][]byte
	bytes int
}

// NewCache creates an empty Cache backed by store.
func NewCache(store fs.FS) *Cache {
	return &Cache{
		store: store,
		files: make(map[string][]byte),
	}
}

// Get returns the memoized bytes for path.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.files[path]
	return data, ok
}

// Put memoizes data under path, replacing any previous entry.
func (c *Cache) Put(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.files[path]; ok {
		c.bytes -= len(old)
	}
	c.files[path] = data
	c.bytes += len(data)
	observability.AssetCacheBytes.Set(float64(c.bytes))
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Load returns the asset at path, reading through to the backing store on a miss
// and memoizing the result. hit reports whether the bytes came from memory.
// A missing file yields an error wrapping ErrNotFound; other read failures are
// returned as-is.
func (c *Cache) Load(path string) (data []byte, hit bool, err error) {
	if data, ok := c.Get(path); ok {
		observability.CacheHitsTotal.WithLabelValues(observability.CacheTypeAsset).Inc()
		return data, true, nil
	}
	observability.CacheMissesTotal.WithLabelValues(observability.CacheTypeAsset, "absent").Inc()

	if !fs.ValidPath(path) {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	data, err = fs.ReadFile(c.store, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, false, err
	}
	c.Put(path, data)
	return data, false, nil
}

// Preload reads every regular top-level file of the backing store into memory,
// keyed by lower-cased name so they match normalized request paths. A file that
// cannot be read is skipped and will be retried on first request. Only a failure
// to list the directory is returned.
func (c *Cache) Preload(logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := fs.ReadDir(c.store, ".")
	if err != nil {
		return 0, fmt.Errorf("list assets: %w", err)
	}
	loaded := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := fs.ReadFile(c.store, e.Name())
		if err != nil {
			observability.AssetPreloadFilesTotal.WithLabelValues("skipped").Inc()
			logger.Debug("asset preload skipped", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		c.Put(strings.ToLower(e.Name()), data)
		observability.AssetPreloadFilesTotal.WithLabelValues("loaded").Inc()
		loaded++
	}
	logger.Info("assets preloaded", zap.Int("files", loaded), zap.Int("entries", len(entries)))
	return loaded, nil
}
