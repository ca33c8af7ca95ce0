package storage

import (
	"fmt"
	"sort"
	"sync"

	"canvas-gateway/internal/common/errors"
)

// Registry maps DATABASE_TYPE values, including aliases, to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StorageFactory
	aliases   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]StorageFactory),
		aliases:   make(map[string]string),
	}
}

// Register adds factory under its own type and any aliases. A later
// registration for the same name replaces the earlier one.
func (r *Registry) Register(factory StorageFactory, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	storageType := factory.GetType()
	r.factories[storageType] = factory
	for _, alias := range aliases {
		r.aliases[alias] = storageType
	}
}

// Resolve returns the canonical type for name.
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(name)
}

func (r *Registry) resolve(name string) (string, bool) {
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	_, ok := r.factories[name]
	return name, ok
}

// Create opens a repository of the named type. config may be nil for
// backends that need none; otherwise it must validate and belong to the
// same backend.
func (r *Registry) Create(name string, config StorageConfig) (Repository, error) {
	r.mu.RLock()
	storageType, ok := r.resolve(name)
	factory := r.factories[storageType]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("unknown storage type %q", name)).
			WithContext("available", r.Types())
	}

	if config != nil {
		if config.GetType() != storageType {
			return nil, errors.ConfigError(fmt.Sprintf("%s config given for %s storage", config.GetType(), storageType))
		}
		if err := config.Validate(); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", storageType, err))
		}
	}

	return factory.Create(config)
}

// Types lists the canonical types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for storageType := range r.factories {
		types = append(types, storageType)
	}
	sort.Strings(types)
	return types
}
