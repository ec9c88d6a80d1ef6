package sourcehttp

import (
	"sync"
	"time"

	"covergrab/internal/cachedb"
)

const (
	apiCacheMaxAge   = 7 * 24 * time.Hour
	thumbCacheMaxAge = 365 * 24 * time.Hour
)

// caches bundles the two caches a Client needs.
type caches struct {
	api   *cachedb.Cache
	thumb *cachedb.Cache
}

// Registry de-duplicates cache handles per source name across parallel
// searches within one process, per spec.md §4.2's "process-wide cache
// registry". It uses an optimistic-read / pessimistic-write discipline:
// the common case (cache already opened) only takes a read lock, and
// the write path re-checks under the write lock to avoid a double-open
// race between two goroutines racing to construct the same source's
// client for the first time.
type Registry struct {
	dir string

	mu     sync.RWMutex
	byName map[string]*caches
}

// NewRegistry returns a Registry storing its cache databases under dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, byName: make(map[string]*caches)}
}

func (r *Registry) get(name string) (*caches, error) {
	r.mu.RLock()
	c, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: another goroutine may have opened it while we waited
	// for the write lock.
	if c, ok := r.byName[name]; ok {
		return c, nil
	}

	api, err := cachedb.New(cachedb.Path(r.dir, name), apiCacheMaxAge, cachedb.LZ4Compressor{})
	if err != nil {
		return nil, err
	}
	thumb, err := cachedb.New(cachedb.Path(r.dir, name+"_thumbs"), thumbCacheMaxAge, cachedb.IdentityCompressor{})
	if err != nil {
		api.Close()
		return nil, err
	}
	c = &caches{api: api, thumb: thumb}
	r.byName[name] = c
	return c, nil
}
