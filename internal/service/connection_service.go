package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/Freeeeeet/careconnect/internal/repository/base"
	"go.uber.org/zap"
)

// ConnectionService хранит активные и завершённые связи терапевта и клиента.
// Для каждой пары допускается не больше одной активной связи.
type ConnectionService struct {
	tx          Transactor
	connections ConnectionStore
	users       UserStore
	gate        *PermissionGate
	eligibility *EligibilityChecker
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewConnectionService(
	tx Transactor,
	connections ConnectionStore,
	users UserStore,
	gate *PermissionGate,
	eligibility *EligibilityChecker,
	notifier Notifier,
	logger *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		tx:          tx,
		connections: connections,
		users:       users,
		gate:        gate,
		eligibility: eligibility,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// HasActiveConnection проверяет активную связь между двумя пользователями (в любом порядке)
func (s *ConnectionService) HasActiveConnection(ctx context.Context, userA, userB int64) (bool, error) {
	ok, err := s.connections.HasActiveBetween(ctx, userA, userB)
	if err != nil {
		return false, fmt.Errorf("check active connection: %w", err)
	}
	return ok, nil
}

// CreateConnection создаёт активную связь; DuplicateConnectionError если пара уже связана
func (s *ConnectionService) CreateConnection(
	ctx context.Context,
	therapistID, clientID int64,
	clientType model.ClientType,
	connectionType model.ConnectionType,
	assignedBy *int64,
) (*model.Connection, error) {
	var conn *model.Connection
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		conn, err = s.createConnection(ctx, therapistID, clientID, clientType, connectionType, assignedBy)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Connection created",
		zap.Int64("connection_id", conn.ID),
		zap.Int64("therapist_id", therapistID),
		zap.Int64("client_id", clientID),
		zap.String("connection_type", string(connectionType)),
	)

	var actorID int64
	if assignedBy != nil {
		actorID = *assignedBy
	}
	publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventConnectionCreated, actorID, conn.ID, therapistID, clientID))

	return conn, nil
}

// createConnection проверяет дубликат и вставляет связь; должен вызываться внутри транзакции
func (s *ConnectionService) createConnection(
	ctx context.Context,
	therapistID, clientID int64,
	clientType model.ClientType,
	connectionType model.ConnectionType,
	assignedBy *int64,
) (*model.Connection, error) {
	exists, err := s.connections.HasActiveBetween(ctx, therapistID, clientID)
	if err != nil {
		return nil, fmt.Errorf("check active connection: %w", err)
	}
	if exists {
		return nil, duplicateConnection(therapistID, clientID)
	}

	conn := &model.Connection{
		TherapistID:    therapistID,
		ClientID:       clientID,
		ClientType:     clientType,
		ConnectionType: connectionType,
		Status:         model.ConnectionStatusActive,
		AssignedBy:     assignedBy,
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		// проигравший в гонке упирается в уникальный индекс
		if errors.Is(err, base.ErrDuplicate) {
			return nil, duplicateConnection(therapistID, clientID)
		}
		return nil, fmt.Errorf("create connection: %w", err)
	}

	return conn, nil
}

func duplicateConnection(therapistID, clientID int64) error {
	return apperr.New(apperr.KindDuplicateConnection, "an active connection already exists for this pair").
		With("therapist_id", therapistID).
		With("client_id", clientID)
}

// CreateAdminConnection прямое назначение связи админом, без заявки
func (s *ConnectionService) CreateAdminConnection(ctx context.Context, adminID, therapistID, clientID int64) (*model.Connection, error) {
	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if !s.gate.CanCreateAdminConnection(admin) {
		return nil, actorError(admin, model.RoleAdmin)
	}

	therapist, err := s.users.GetByID(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("get therapist: %w", err)
	}
	if err := s.eligibility.CheckTherapist(therapist); err != nil {
		return nil, err
	}

	client, err := s.users.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if err := s.eligibility.CheckClient(client, ""); err != nil {
		return nil, err
	}

	if client.HasRole(model.RoleChild) {
		var guardian *model.User
		if client.GuardianID != nil {
			guardian, err = s.users.GetByID(ctx, *client.GuardianID)
			if err != nil {
				return nil, fmt.Errorf("get guardian: %w", err)
			}
		}
		if err := s.eligibility.CheckChildGuardian(client, guardian); err != nil {
			return nil, err
		}
	}

	clientType, _ := model.ClientTypeForRole(client.Role)
	return s.CreateConnection(ctx, therapistID, clientID, clientType, model.ConnectionTypeAdminAssigned, &adminID)
}

// TerminateConnection завершает связь. Запись не удаляется и остаётся в истории.
func (s *ConnectionService) TerminateConnection(ctx context.Context, connectionID, actorID int64) (*model.Connection, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}

	var conn *model.Connection
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn, err = s.connections.GetByIDForUpdate(ctx, connectionID)
		if err != nil {
			return fmt.Errorf("get connection: %w", err)
		}
		if conn == nil {
			return apperr.New(apperr.KindNotFound, "connection not found").With("connection_id", connectionID)
		}

		client, err := s.users.GetByID(ctx, conn.ClientID)
		if err != nil {
			return fmt.Errorf("get client: %w", err)
		}
		if !s.gate.CanTerminate(actor, conn, client) {
			return apperr.New(apperr.KindUnauthorized, "you are not a party of this connection").With("connection_id", connectionID)
		}

		if !conn.IsActive() {
			return alreadyTerminated(connectionID)
		}

		now := s.now()
		ok, err := s.connections.Terminate(ctx, connectionID, now)
		if err != nil {
			return fmt.Errorf("terminate connection: %w", err)
		}
		if !ok {
			return alreadyTerminated(connectionID)
		}

		conn.Status = model.ConnectionStatusTerminated
		conn.TerminatedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Connection terminated",
		zap.Int64("connection_id", connectionID),
		zap.Int64("actor_id", actorID),
	)

	publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventConnectionTerminated, actorID, conn.ID, conn.TherapistID, conn.ClientID))

	return conn, nil
}

func alreadyTerminated(connectionID int64) error {
	return apperr.New(apperr.KindAlreadyTerminated, "connection is already terminated").With("connection_id", connectionID)
}

// GetHistory возвращает все связи той же пары, новые первыми
func (s *ConnectionService) GetHistory(ctx context.Context, connectionID int64) ([]*model.Connection, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if conn == nil {
		return nil, apperr.New(apperr.KindNotFound, "connection not found").With("connection_id", connectionID)
	}

	history, err := s.connections.ListForPair(ctx, conn.TherapistID, conn.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get connection history: %w", err)
	}
	return history, nil
}

// GetByID получает связь по ID; nil, если не найдена
func (s *ConnectionService) GetByID(ctx context.Context, connectionID int64) (*model.Connection, error) {
	return s.connections.GetByID(ctx, connectionID)
}

// ListConnections получает связи пользователя вместе с участниками
func (s *ConnectionService) ListConnections(ctx context.Context, userID int64, activeOnly bool) ([]*model.ConnectionView, error) {
	connections, err := s.connections.ListByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	if len(connections) == 0 {
		return []*model.ConnectionView{}, nil
	}

	seen := make(map[int64]struct{})
	var ids []int64
	for _, c := range connections {
		for _, id := range []int64{c.TherapistID, c.ClientID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get connection users: %w", err)
	}

	return assembleViews(connections, users), nil
}

// assembleViews собирает связи и уже загруженных пользователей
func assembleViews(connections []*model.Connection, users []*model.User) []*model.ConnectionView {
	byID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]*model.ConnectionView, 0, len(connections))
	for _, c := range connections {
		views = append(views, &model.ConnectionView{
			Connection: c,
			Therapist:  byID[c.TherapistID],
			Client:     byID[c.ClientID],
		})
	}
	return views
}
