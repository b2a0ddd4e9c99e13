package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/Freeeeeet/careconnect/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConnectionRequestRepository struct {
	*base.Repository
}

func NewConnectionRequestRepository(pool *pgxpool.Pool) *ConnectionRequestRepository {
	return &ConnectionRequestRepository{Repository: base.NewRepository(pool)}
}

const requestColumns = `id, requester_id, target_therapist_id, target_client_id, request_type, message, status, created_at, processed_at, processed_by`

func scanRequest(row scanner) (*model.ConnectionRequest, error) {
	var req model.ConnectionRequest
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.TargetTherapistID,
		&req.TargetClientID,
		&req.RequestType,
		&req.Message,
		&req.Status,
		&req.CreatedAt,
		&req.ProcessedAt,
		&req.ProcessedBy,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ConnectionRequestRepository) queryRequests(ctx context.Context, query string, args ...any) ([]*model.ConnectionRequest, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*model.ConnectionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, nil
}

// Create создает заявку. Вторая pending заявка на ту же тройку упирается в uq_connection_requests_pending.
func (r *ConnectionRequestRepository) Create(ctx context.Context, req *model.ConnectionRequest) error {
	query := `
		INSERT INTO connection_requests (requester_id, target_therapist_id, target_client_id, request_type, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		req.RequesterID,
		req.TargetTherapistID,
		req.TargetClientID,
		req.RequestType,
		req.Message,
		req.Status,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create connection request: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("create connection request: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *ConnectionRequestRepository) GetByID(ctx context.Context, id int64) (*model.ConnectionRequest, error) {
	return r.getByID(ctx, `SELECT `+requestColumns+` FROM connection_requests WHERE id = $1`, id)
}

// GetByIDForUpdate получает заявку и блокирует строку до конца транзакции
func (r *ConnectionRequestRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.ConnectionRequest, error) {
	return r.getByID(ctx, `SELECT `+requestColumns+` FROM connection_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *ConnectionRequestRepository) getByID(ctx context.Context, query string, id int64) (*model.ConnectionRequest, error) {
	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get connection request: %w", err)
	}
	return req, nil
}

// GetPendingByTherapist получает pending заявки терапевта, новые первыми
func (r *ConnectionRequestRepository) GetPendingByTherapist(ctx context.Context, therapistID int64) ([]*model.ConnectionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM connection_requests
		WHERE target_therapist_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
	`

	requests, err := r.queryRequests(ctx, query, therapistID, model.RequestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("get pending requests: %w", err)
	}
	return requests, nil
}

// GetByRequester получает все заявки автора, новые первыми
func (r *ConnectionRequestRepository) GetByRequester(ctx context.Context, requesterID int64) ([]*model.ConnectionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM connection_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC, id DESC
	`

	requests, err := r.queryRequests(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get requester requests: %w", err)
	}
	return requests, nil
}

// GetPendingCreatedBetween получает pending заявки, созданные в [from, to) (для напоминаний)
func (r *ConnectionRequestRepository) GetPendingCreatedBetween(ctx context.Context, from, to time.Time) ([]*model.ConnectionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM connection_requests
		WHERE status = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, id ASC
	`

	requests, err := r.queryRequests(ctx, query, model.RequestStatusPending, from, to)
	if err != nil {
		return nil, fmt.Errorf("get stale pending requests: %w", err)
	}
	return requests, nil
}

// HasPending проверяет, есть ли pending заявка на тройку. clientID = nil для заявки к терапевту.
func (r *ConnectionRequestRepository) HasPending(ctx context.Context, requesterID, therapistID int64, clientID *int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM connection_requests
			WHERE requester_id = $1
			  AND target_therapist_id = $2
			  AND target_client_id IS NOT DISTINCT FROM $3
			  AND status = $4
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, requesterID, therapistID, clientID, model.RequestStatusPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}

	return exists, nil
}

// UpdateStatus переводит pending заявку в конечный статус. false, если заявка уже обработана.
func (r *ConnectionRequestRepository) UpdateStatus(ctx context.Context, id int64, status model.RequestStatus, processedBy int64, at time.Time) (bool, error) {
	query := `
		UPDATE connection_requests
		SET status = $1, processed_by = $2, processed_at = $3
		WHERE id = $4 AND status = $5
	`

	affected, err := r.ExecAffected(ctx, query, status, processedBy, at, id, model.RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("update request status: %w", err)
	}

	return affected > 0, nil
}

// CountPendingByTherapist подсчитывает количество pending заявок терапевта
func (r *ConnectionRequestRepository) CountPendingByTherapist(ctx context.Context, therapistID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM connection_requests
		WHERE target_therapist_id = $1 AND status = $2
	`

	var count int
	err := r.QueryRow(ctx, query, therapistID, model.RequestStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}

	return count, nil
}
