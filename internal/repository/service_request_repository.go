package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-service/internal/domain"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("record not found")

// ServiceRequestRepository encapsulates service request persistence.
type ServiceRequestRepository interface {
	Get(ctx context.Context, id int64) (*domain.ServiceRequest, error)
	List(ctx context.Context) ([]domain.ServiceRequest, error)
	// Save inserts when ID is zero, assigning ID and CreatedAt; otherwise it
	// updates the record and stamps UpdatedAt.
	Save(ctx context.Context, req *domain.ServiceRequest) error
}

type serviceRequestRepository struct {
	pool *pgxpool.Pool
}

// NewServiceRequestRepository instantiates the postgres-backed repository.
func NewServiceRequestRepository(pool *pgxpool.Pool) ServiceRequestRepository {
	return &serviceRequestRepository{pool: pool}
}

const serviceRequestColumns = `id, customer_id, request_type, request_details, status, assigned_to, created_at, updated_at`

func (r *serviceRequestRepository) Get(ctx context.Context, id int64) (*domain.ServiceRequest, error) {
	const query = `SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE id=$1`
	req, err := scanServiceRequest(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *serviceRequestRepository) List(ctx context.Context) ([]domain.ServiceRequest, error) {
	const query = `SELECT ` + serviceRequestColumns + ` FROM service_requests ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.ServiceRequest{}
	for rows.Next() {
		req, err := scanServiceRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *serviceRequestRepository) Save(ctx context.Context, req *domain.ServiceRequest) error {
	if req.ID == 0 {
		return r.insert(ctx, req)
	}
	return r.update(ctx, req)
}

func (r *serviceRequestRepository) insert(ctx context.Context, req *domain.ServiceRequest) error {
	const query = `
        INSERT INTO service_requests (customer_id, request_type, request_details, status, assigned_to)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		req.CustomerID,
		req.RequestType,
		req.RequestDetails,
		req.Status,
		req.AssignedTo,
	).Scan(&req.ID, &req.CreatedAt)
}

func (r *serviceRequestRepository) update(ctx context.Context, req *domain.ServiceRequest) error {
	const query = `
        UPDATE service_requests SET customer_id=$1, request_type=$2, request_details=$3,
            status=$4, assigned_to=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		req.CustomerID,
		req.RequestType,
		req.RequestDetails,
		req.Status,
		req.AssignedTo,
		req.ID,
	).Scan(&req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanServiceRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	if err := row.Scan(
		&req.ID,
		&req.CustomerID,
		&req.RequestType,
		&req.RequestDetails,
		&req.Status,
		&req.AssignedTo,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
