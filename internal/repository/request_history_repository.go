package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-service/internal/domain"
)

// RequestHistoryRepository stores audit entries.
type RequestHistoryRepository interface {
	Create(ctx context.Context, history *domain.RequestHistory) error
	ListByRequest(ctx context.Context, requestID int64) ([]domain.RequestHistory, error)
}

type requestHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewRequestHistoryRepository builds repository.
func NewRequestHistoryRepository(pool *pgxpool.Pool) RequestHistoryRepository {
	return &requestHistoryRepository{pool: pool}
}

func (r *requestHistoryRepository) Create(ctx context.Context, history *domain.RequestHistory) error {
	const query = `
        INSERT INTO request_history (request_id, change_type, source, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		history.RequestID,
		history.ChangeType,
		history.Source,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *requestHistoryRepository) ListByRequest(ctx context.Context, requestID int64) ([]domain.RequestHistory, error) {
	const query = `
        SELECT id, request_id, change_type, source, old_value, new_value, created_at
        FROM request_history WHERE request_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.RequestHistory{}
	for rows.Next() {
		var history domain.RequestHistory
		if err := rows.Scan(
			&history.ID,
			&history.RequestID,
			&history.ChangeType,
			&history.Source,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

// MemoryRequestHistoryRepository is the in-process audit trail.
type MemoryRequestHistoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64][]domain.RequestHistory
}

// NewMemoryRequestHistoryRepository builds an empty audit trail.
func NewMemoryRequestHistoryRepository() *MemoryRequestHistoryRepository {
	return &MemoryRequestHistoryRepository{entries: make(map[int64][]domain.RequestHistory)}
}

func (r *MemoryRequestHistoryRepository) Create(_ context.Context, history *domain.RequestHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	history.ID = r.nextID
	history.CreatedAt = time.Now()
	r.entries[history.RequestID] = append(r.entries[history.RequestID], *history)
	return nil
}

func (r *MemoryRequestHistoryRepository) ListByRequest(_ context.Context, requestID int64) ([]domain.RequestHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.RequestHistory{}, r.entries[requestID]...), nil
}
