package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// MemoryRepository is an in-memory quote store for tests and for running the
// service without a database.
type MemoryRepository struct {
	mu     sync.RWMutex
	quotes map[uuid.UUID]*model.Quote
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{quotes: make(map[uuid.UUID]*model.Quote)}
}

// clone copies a quote so callers never share line slices with the store.
func clone(q *model.Quote) *model.Quote {
	cp := *q
	cp.Lines = make([]model.LineItem, len(q.Lines))
	copy(cp.Lines, q.Lines)
	return &cp
}

// Create inserts a new quote, assigning its ID and timestamps.
func (r *MemoryRepository) Create(_ context.Context, q *model.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q.ID = uuid.New()
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	if q.Status == "" {
		q.Status = model.StatusDraft
	}
	if q.Version == 0 {
		q.Version = 1
	}
	r.quotes[q.ID] = clone(q)
	return nil
}

// Get retrieves a quote by id.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*model.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(q), nil
}

// Update persists the quote's mutable fields.
func (r *MemoryRepository) Update(_ context.Context, q *model.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quotes[q.ID]; !ok {
		return ErrNotFound
	}
	q.UpdatedAt = time.Now().UTC()
	r.quotes[q.ID] = clone(q)
	return nil
}

// UpdateStatus changes only the lifecycle status of a quote.
func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.QuoteStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	q.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns quotes ordered by creation time, newest first.
func (r *MemoryRepository) List(_ context.Context, limit, offset int) ([]*model.Quote, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	r.mu.RLock()
	all := make([]*model.Quote, 0, len(r.quotes))
	for _, q := range r.quotes {
		all = append(all, clone(q))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
