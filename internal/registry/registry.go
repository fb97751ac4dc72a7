// Package registry implements the model registry: it loads Model instances
// from a filesystem artifact root, caches them by version, and tracks which
// version is the current default. Grounded on the teacher's
// internal/intelligence/common ModelRegistry (mutex-guarded cache plus an
// atomic.Value for lock-free default-version reads), trimmed of A/B testing,
// semver resolution, rollback history, and the background health/eviction
// loop — none of which this server's spec calls for.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/model"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// entry is one cached (version, model instance, loaded-at) tuple.
type entry struct {
	m        model.Model
	loadedAt time.Time
}

// Loader constructs a Model for a given version. The default implementation
// is model.LoadFromArtifact against a filesystem root; tests may substitute
// an in-memory loader.
type Loader func(version string) (model.Model, error)

// Registry is the model registry described in the design's component A.
// All mutable state is guarded by mu except the default-version pointer,
// which is held in an atomic.Value so DefaultVersion never observes a torn
// value while Promote is in flight.
type Registry struct {
	mu      sync.Mutex
	cache   map[string]*entry
	loader  Loader
	log     logging.Logger
	current atomic.Value // string
}

// New constructs a Registry with defaultVersion as its initial default. The
// default version is NOT auto-loaded; the first Load or Promote call for it
// establishes the cache entry, matching the teacher's lazy-load convention.
func New(loader Loader, defaultVersion string, log logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &Registry{
		cache:  make(map[string]*entry),
		loader: loader,
		log:    log,
	}
	r.current.Store(defaultVersion)
	return r
}

// NewFilesystem is a convenience constructor wiring model.LoadFromArtifact
// against the given artifact root.
func NewFilesystem(root, defaultVersion string, log logging.Logger) *Registry {
	return New(func(version string) (model.Model, error) {
		return model.LoadFromArtifact(root, version)
	}, defaultVersion, log)
}

// Load returns the cached Model for version, loading it from the artifact
// root on first use. Load is idempotent: a second call for an
// already-cached version returns the same instance without touching the
// loader.
func (r *Registry) Load(version string) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(version)
}

// loadLocked assumes r.mu is held.
func (r *Registry) loadLocked(version string) (model.Model, error) {
	if e, ok := r.cache[version]; ok {
		return e.m, nil
	}

	m, err := r.loader(version)
	if err != nil {
		return nil, err
	}

	r.cache[version] = &entry{m: m, loadedAt: time.Now()}
	r.log.Info("model loaded", logging.String("version", version))
	return m, nil
}

// Unload removes version from the cache. It refuses to unload the current
// default version with errors.CannotUnloadDefault.
func (r *Registry) Unload(version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DefaultVersion() == version {
		return errors.CannotUnloadDefault(version)
	}

	delete(r.cache, version)
	r.log.Info("model unloaded", logging.String("version", version))
	return nil
}

// Promote auto-loads version if necessary, then atomically makes it the new
// default. Load is called inside the same critical section as the mutex —
// it is not re-entered, since loadLocked does not take the lock itself.
func (r *Registry) Promote(version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.loadLocked(version); err != nil {
		return err
	}

	r.current.Store(version)
	r.log.Info("model promoted to default", logging.String("version", version))
	return nil
}

// DefaultVersion returns the current default version. It is a single atomic
// read and never blocks behind mu.
func (r *Registry) DefaultVersion() string {
	v, _ := r.current.Load().(string)
	return v
}

// LoadedVersions returns every version currently cached, in no particular
// order.
func (r *Registry) LoadedVersions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := make([]string, 0, len(r.cache))
	for v := range r.cache {
		versions = append(versions, v)
	}
	return versions
}

// Get returns the cached Model for version without triggering a load,
// reporting ok=false when it is not currently cached.
func (r *Registry) Get(version string) (model.Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache[version]
	if !ok {
		return nil, false
	}
	return e.m, true
}
