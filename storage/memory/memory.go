// Package memory provides a thread-safe in-memory implementation of storage.Slots.
package memory

import (
	"maps"
	"sync"

	"github.com/jmcleod/lectern/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Slots.
// Suitable for testing, demos, and sessions that should not outlive the
// process.
type Repository struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ storage.Slots = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]string)}
}

func (r *Repository) Get(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[name]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (r *Repository) Put(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = value
	return nil
}

func (r *Repository) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, name)
	return nil
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := maps.Clone(r.data)
	if err := fn(&memoryBatchTx{repo: r}); err != nil {
		r.data = snapshot
		return err
	}
	return nil
}

type memoryBatchTx struct {
	repo *Repository
}

func (tx *memoryBatchTx) Put(name, value string) error {
	tx.repo.data[name] = value
	return nil
}

func (tx *memoryBatchTx) Delete(name string) error {
	delete(tx.repo.data, name)
	return nil
}
