// Package state keeps the loaded datasets and their derived artifacts.
// Questions and categories are computed on demand and cached per dataset
// until the analysis config changes.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"surveyd/internal/category"
	"surveyd/internal/classify"
	"surveyd/internal/config"
	"surveyd/internal/dataset"
)

// Entry is one loaded dataset plus its config and caches.
type Entry struct {
	ID      string
	Dataset *dataset.Dataset

	mu         sync.Mutex
	cfg        *config.Config
	questions  *classify.Result
	categories *category.Result
}

// Config returns the entry's analysis config.
func (e *Entry) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig swaps the analysis config and drops the derived caches, since
// questions and categories are functions of (data, config).
func (e *Entry) SetConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.questions = nil
	e.categories = nil
}

// Questions classifies on first use and caches the result.
func (e *Entry) Questions() *classify.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.questions == nil {
		e.questions = classify.Classify(e.Dataset, e.cfg)
	}
	return e.questions
}

// Categories builds the derived category columns on first use.
func (e *Entry) Categories() *category.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.categories == nil {
		e.categories = category.Build(e.Dataset, e.cfg)
	}
	return e.categories
}

// Registry holds all loaded datasets keyed by id.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Add registers a dataset under a fresh id with the given config.
func (r *Registry) Add(ds *dataset.Dataset, cfg *config.Config) *Entry {
	entry := &Entry{
		ID:      uuid.NewString(),
		Dataset: ds,
		cfg:     cfg,
	}
	r.mu.Lock()
	r.entries[entry.ID] = entry
	r.mu.Unlock()
	return entry
}

// Get looks an entry up by id.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", id)
	}
	return entry, nil
}

// Remove drops an entry. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// IDs returns the registered dataset ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
