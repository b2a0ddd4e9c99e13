package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/Freeeeeet/careconnect/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConnectionRepository struct {
	*base.Repository
}

func NewConnectionRepository(pool *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{Repository: base.NewRepository(pool)}
}

const connectionColumns = `id, therapist_id, client_id, client_type, connection_type, status, assigned_at, terminated_at, assigned_by`

func scanConnection(row scanner) (*model.Connection, error) {
	var conn model.Connection
	err := row.Scan(
		&conn.ID,
		&conn.TherapistID,
		&conn.ClientID,
		&conn.ClientType,
		&conn.ConnectionType,
		&conn.Status,
		&conn.AssignedAt,
		&conn.TerminatedAt,
		&conn.AssignedBy,
	)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepository) queryConnections(ctx context.Context, query string, args ...any) ([]*model.Connection, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*model.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		connections = append(connections, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return connections, nil
}

// Create создаёт активную связь. Вторая активная связь для пары упирается в uq_connections_active_pair.
func (r *ConnectionRepository) Create(ctx context.Context, conn *model.Connection) error {
	query := `
		INSERT INTO connections (therapist_id, client_id, client_type, connection_type, status, assigned_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, assigned_at
	`

	err := r.QueryRow(
		ctx, query,
		conn.TherapistID,
		conn.ClientID,
		conn.ClientType,
		conn.ConnectionType,
		conn.Status,
		conn.AssignedBy,
	).Scan(&conn.ID, &conn.AssignedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create connection: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("create connection: %w", err)
	}

	return nil
}

// GetByID получает связь по ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	return r.getByID(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
}

// GetByIDForUpdate получает связь и блокирует строку до конца транзакции
func (r *ConnectionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Connection, error) {
	return r.getByID(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1 FOR UPDATE`, id)
}

func (r *ConnectionRepository) getByID(ctx context.Context, query string, id int64) (*model.Connection, error) {
	conn, err := scanConnection(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

// HasActiveBetween проверяет активную связь между двумя пользователями в любой роли
func (r *ConnectionRepository) HasActiveBetween(ctx context.Context, userA, userB int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM connections
			WHERE status = $3
			  AND ((therapist_id = $1 AND client_id = $2) OR (therapist_id = $2 AND client_id = $1))
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, userA, userB, model.ConnectionStatusActive).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active connection: %w", err)
	}

	return exists, nil
}

// Terminate завершает активную связь. false, если связь уже не активна.
func (r *ConnectionRepository) Terminate(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE connections
		SET status = $1, terminated_at = $2
		WHERE id = $3 AND status = $4
	`

	affected, err := r.ExecAffected(ctx, query, model.ConnectionStatusTerminated, at, id, model.ConnectionStatusActive)
	if err != nil {
		return false, fmt.Errorf("terminate connection: %w", err)
	}

	return affected > 0, nil
}

// ListForPair получает все связи пары, новые первыми
func (r *ConnectionRepository) ListForPair(ctx context.Context, therapistID, clientID int64) ([]*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE therapist_id = $1 AND client_id = $2
		ORDER BY assigned_at DESC, id DESC
	`

	connections, err := r.queryConnections(ctx, query, therapistID, clientID)
	if err != nil {
		return nil, fmt.Errorf("list pair connections: %w", err)
	}
	return connections, nil
}

// ListByUser получает связи пользователя в любой роли, новые первыми
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE (therapist_id = $1 OR client_id = $1)
		  AND ($2 = FALSE OR status = $3)
		ORDER BY assigned_at DESC, id DESC
	`

	connections, err := r.queryConnections(ctx, query, userID, activeOnly, model.ConnectionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list user connections: %w", err)
	}
	return connections, nil
}
