package storage

import (
	"path/filepath"
	"sync"
)

// Registry hands out one Manager per destination directory so that jobs
// writing to the same directory share a single identifier set
type Registry struct {
	maxFilename int

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates an empty registry
func NewRegistry(maxFilename int) *Registry {
	return &Registry{
		maxFilename: maxFilename,
		managers:    make(map[string]*Manager),
	}
}

// Manager returns the shared manager for dir, creating it on first use
func (r *Registry) Manager(dir string) (*Manager, error) {
	key := filepath.Clean(dir)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[key]; ok {
		return m, nil
	}

	m, err := NewManager(dir, r.maxFilename)
	if err != nil {
		return nil, err
	}
	r.managers[key] = m
	return m, nil
}

// Len returns the number of directories seen so far
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
