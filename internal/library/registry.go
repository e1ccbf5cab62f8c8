package library

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded libraries.
type Registry struct {
	sync.RWMutex
	libraries map[string]*Library    // name -> library
	byBackend map[Backend][]*Library // backend -> libraries
	logger    *zap.Logger
}

// NewRegistry creates a new library registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		libraries: make(map[string]*Library),
		byBackend: make(map[Backend][]*Library),
		logger:    logger.With(zap.String("component", "library-registry")),
	}
}

// Register adds a library to the registry.
func (r *Registry) Register(lib *Library) error {
	r.Lock()
	defer r.Unlock()

	name := lib.Manifest.Name

	if _, exists := r.libraries[name]; exists {
		return &LibraryAlreadyRegisteredError{LibraryName: name}
	}

	r.libraries[name] = lib

	backend := lib.Manifest.Backend
	r.byBackend[backend] = append(r.byBackend[backend], lib)

	r.logger.Info("Library registered",
		zap.String("name", name),
		zap.String("backend", string(backend)),
	)

	return nil
}

// Get retrieves a library by name.
func (r *Registry) Get(name string) (*Library, bool) {
	r.RLock()
	defer r.RUnlock()

	lib, ok := r.libraries[name]
	return lib, ok
}

// LookupByBackend finds libraries served by a backend.
func (r *Registry) LookupByBackend(backend Backend) []*Library {
	r.RLock()
	defer r.RUnlock()

	libs, ok := r.byBackend[backend]
	if !ok || len(libs) == 0 {
		return []*Library{}
	}
	// Return copy to avoid race conditions
	result := make([]*Library, len(libs))
	copy(result, libs)
	return result
}

// LookupByDir finds the library loaded from dir.
func (r *Registry) LookupByDir(dir string) (*Library, bool) {
	r.RLock()
	defer r.RUnlock()

	for _, lib := range r.libraries {
		if lib.Manifest.Dir() == dir {
			return lib, true
		}
	}
	return nil, false
}

// List returns all registered libraries sorted by name.
func (r *Registry) List() []*Library {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Library, 0, len(r.libraries))
	for _, lib := range r.libraries {
		result = append(result, lib)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Manifest.Name < result[j].Manifest.Name
	})
	return result
}

// Unregister removes a library from the registry and returns it.
// The caller owns closing it.
func (r *Registry) Unregister(name string) (*Library, bool) {
	r.Lock()
	defer r.Unlock()

	lib, ok := r.libraries[name]
	if !ok {
		return nil, false
	}

	backend := lib.Manifest.Backend
	libs := r.byBackend[backend]
	for i, l := range libs {
		if l.Manifest.Name == name {
			r.byBackend[backend] = append(libs[:i], libs[i+1:]...)
			break
		}
	}

	delete(r.libraries, name)

	r.logger.Info("Library unregistered", zap.String("name", name))
	return lib, true
}

// Count returns the number of registered libraries.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.libraries)
}
