package memory

import (
	"context"
	"fmt"
	"invoice_router/internal/repository"
	"sort"
	"sync"
)

type GraphRepository struct {
	mu     sync.RWMutex
	graphs map[string][]byte
}

func NewGraphRepository() *GraphRepository {
	return &GraphRepository{
		graphs: make(map[string][]byte),
	}
}

func (r *GraphRepository) Save(ctx context.Context, id string, doc []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.graphs[id]; exists {
		return fmt.Errorf("%w: graph %s", repository.ErrDuplicate, id)
	}

	r.graphs[id] = clone(doc)

	return nil
}

func (r *GraphRepository) Get(ctx context.Context, id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.graphs[id]
	if !exists {
		return nil, fmt.Errorf("%w: graph %s", repository.ErrNotFound, id)
	}
	return clone(doc), nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.graphs[id]; !exists {
		return fmt.Errorf("%w: graph %s", repository.ErrNotFound, id)
	}
	delete(r.graphs, id)

	return nil
}

func (r *GraphRepository) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

func (r *GraphRepository) Update(ctx context.Context, id string, fn func(doc []byte) ([]byte, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.graphs[id]
	if !exists {
		return fmt.Errorf("%w: graph %s", repository.ErrNotFound, id)
	}

	updated, err := fn(clone(existing))
	if err != nil {
		return err
	}
	r.graphs[id] = clone(updated)

	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
