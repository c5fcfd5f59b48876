package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// MemoryServiceRequestRepository keeps records in process memory. It is
// used when no database is configured and in tests.
type MemoryServiceRequestRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*domain.ServiceRequest
	now     func() time.Time
}

// NewMemoryServiceRequestRepository builds an empty store.
func NewMemoryServiceRequestRepository() *MemoryServiceRequestRepository {
	return &MemoryServiceRequestRepository{
		records: make(map[int64]*domain.ServiceRequest),
		now:     time.Now,
	}
}

// WithClock replaces the timestamp source.
func (r *MemoryServiceRequestRepository) WithClock(now func() time.Time) *MemoryServiceRequestRepository {
	r.now = now
	return r
}

func (r *MemoryServiceRequestRepository) Get(_ context.Context, id int64) (*domain.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req.Clone(), nil
}

func (r *MemoryServiceRequestRepository) List(_ context.Context) ([]domain.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.ServiceRequest, 0, len(r.records))
	for _, req := range r.records {
		result = append(result, *req.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryServiceRequestRepository) Save(ctx context.Context, req *domain.ServiceRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if req.ID == 0 {
		r.nextID++
		req.ID = r.nextID
		req.CreatedAt = now
		req.UpdatedAt = nil
	} else {
		existing, ok := r.records[req.ID]
		if !ok {
			return ErrNotFound
		}
		req.CreatedAt = existing.CreatedAt
		req.UpdatedAt = &now
	}
	r.records[req.ID] = req.Clone()
	return nil
}

// Len returns how many records are stored.
func (r *MemoryServiceRequestRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
