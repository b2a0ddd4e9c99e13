package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/Freeeeeet/careconnect/internal/repository/base"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CreateRequestInput входные данные заявки
type CreateRequestInput struct {
	RequesterID       int64             `json:"requester_id" validate:"required,gt=0"`
	TargetTherapistID int64             `json:"target_therapist_id" validate:"required,gt=0"`
	TargetClientID    *int64            `json:"target_client_id" validate:"omitempty,gt=0"`
	RequestType       model.RequestType `json:"request_type" validate:"required,oneof=guardian_to_therapist guardian_child_assignment"`
	Message           string            `json:"message" validate:"omitempty,max=1000"`
}

// RequestService ведёт заявки на связь от создания до одобрения или отклонения
type RequestService struct {
	tx          Transactor
	requests    RequestStore
	connections *ConnectionService
	users       UserStore
	gate        *PermissionGate
	eligibility *EligibilityChecker
	notifier    Notifier
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

func NewRequestService(
	tx Transactor,
	requests RequestStore,
	connections *ConnectionService,
	users UserStore,
	gate *PermissionGate,
	eligibility *EligibilityChecker,
	notifier Notifier,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		tx:          tx,
		requests:    requests,
		connections: connections,
		users:       users,
		gate:        gate,
		eligibility: eligibility,
		notifier:    notifier,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
	}
}

// ============ Создание заявки ============

func (s *RequestService) validateInput(in *CreateRequestInput) error {
	in.Message = strings.TrimSpace(in.Message)

	if err := s.validate.Struct(in); err != nil {
		verr := apperr.New(apperr.KindValidation, "invalid connection request")
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.With(fe.Field(), fe.Tag())
			}
		}
		return verr
	}

	switch in.RequestType {
	case model.RequestTypeGuardianChildAssignment:
		if in.TargetClientID == nil {
			return apperr.New(apperr.KindValidation, "child is required for a child assignment").With("TargetClientID", "required")
		}
	case model.RequestTypeGuardianToTherapist:
		if in.TargetClientID != nil {
			return apperr.New(apperr.KindValidation, "child must not be set for a therapist request").With("TargetClientID", "excluded")
		}
	}
	return nil
}

// CreateRequest создаёт pending заявку от опекуна
func (s *RequestService) CreateRequest(ctx context.Context, in CreateRequestInput) (*model.ConnectionRequest, error) {
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	requester, err := s.users.GetByID(ctx, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("get requester: %w", err)
	}
	if requester == nil {
		return nil, apperr.New(apperr.KindNotFound, "requester not found").With("user_id", in.RequesterID)
	}
	if !s.gate.CanCreateConnectionRequest(requester) {
		return nil, actorError(requester, model.RoleGuardian)
	}

	therapist, err := s.users.GetByID(ctx, in.TargetTherapistID)
	if err != nil {
		return nil, fmt.Errorf("get therapist: %w", err)
	}
	if err := s.eligibility.CheckTherapist(therapist); err != nil {
		return nil, err
	}

	isChildAssignment := in.RequestType == model.RequestTypeGuardianChildAssignment
	if isChildAssignment {
		child, err := s.users.GetByID(ctx, *in.TargetClientID)
		if err != nil {
			return nil, fmt.Errorf("get child: %w", err)
		}
		if err := s.eligibility.CheckClient(child, model.RoleChild); err != nil {
			return nil, err
		}
		if !s.gate.CanAssignChild(requester, child) {
			if err := s.eligibility.CheckChildOwnership(child, requester); err != nil {
				return nil, err
			}
			return nil, actorError(requester, model.RoleGuardian)
		}
	}

	req := &model.ConnectionRequest{
		RequesterID:       in.RequesterID,
		TargetTherapistID: in.TargetTherapistID,
		TargetClientID:    in.TargetClientID,
		RequestType:       in.RequestType,
		Message:           in.Message,
		Status:            model.RequestStatusPending,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		hasPending, err := s.requests.HasPending(ctx, req.RequesterID, req.TargetTherapistID, req.TargetClientID)
		if err != nil {
			return fmt.Errorf("check pending request: %w", err)
		}
		if hasPending {
			return duplicateRequest(req)
		}

		guardianLinked, err := s.connections.HasActiveConnection(ctx, req.RequesterID, req.TargetTherapistID)
		if err != nil {
			return err
		}

		if !isChildAssignment {
			if guardianLinked {
				return apperr.New(apperr.KindConnectionAlreadyExists, "you are already connected to this therapist").
					With("therapist_id", req.TargetTherapistID)
			}
		} else {
			if !guardianLinked {
				return apperr.New(apperr.KindPrerequisiteNotMet, "connect to the therapist before assigning a child").
					With("therapist_id", req.TargetTherapistID)
			}

			childLinked, err := s.connections.HasActiveConnection(ctx, *req.TargetClientID, req.TargetTherapistID)
			if err != nil {
				return err
			}
			if childLinked {
				return apperr.New(apperr.KindConnectionAlreadyExists, "this child is already connected to this therapist").
					With("therapist_id", req.TargetTherapistID).
					With("child_id", *req.TargetClientID)
			}
		}

		if err := s.requests.Create(ctx, req); err != nil {
			if errors.Is(err, base.ErrDuplicate) {
				return duplicateRequest(req)
			}
			return fmt.Errorf("create request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Connection request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("requester_id", req.RequesterID),
		zap.Int64("therapist_id", req.TargetTherapistID),
		zap.String("request_type", string(req.RequestType)),
	)

	publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventRequestCreated, req.RequesterID, req.ID, requestSubjects(req)...))

	return req, nil
}

func duplicateRequest(req *model.ConnectionRequest) error {
	err := apperr.New(apperr.KindDuplicateRequest, "a pending request already exists").
		With("requester_id", req.RequesterID).
		With("therapist_id", req.TargetTherapistID)
	if req.TargetClientID != nil {
		err.With("child_id", *req.TargetClientID)
	}
	return err
}

// requestSubjects все участники заявки
func requestSubjects(req *model.ConnectionRequest) []int64 {
	subjects := []int64{req.RequesterID, req.TargetTherapistID}
	if req.TargetClientID != nil {
		subjects = append(subjects, *req.TargetClientID)
	}
	return subjects
}

// ============ Обработка заявки ============

// ProcessRequest одобряет или отклоняет pending заявку.
// Одобрение создаёт связь и меняет статус заявки в одной транзакции.
func (s *RequestService) ProcessRequest(ctx context.Context, requestID int64, action model.RequestAction, actorID int64) (bool, error) {
	if action != model.RequestActionApprove && action != model.RequestActionDecline {
		return false, apperr.Newf(apperr.KindValidation, "unknown action %q", action)
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("get actor: %w", err)
	}

	var (
		req  *model.ConnectionRequest
		conn *model.Connection
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if req == nil {
			return apperr.New(apperr.KindNotFound, "request not found").With("request_id", requestID)
		}

		if !s.gate.CanApproveOrDecline(actor, req) {
			return apperr.New(apperr.KindUnauthorized, "request belongs to another therapist").With("request_id", requestID)
		}

		if !req.IsPending() {
			return alreadyProcessed(req)
		}

		status := model.RequestStatusDeclined
		if action == model.RequestActionApprove {
			status = model.RequestStatusApproved

			assignedBy := req.RequesterID
			conn, err = s.connections.createConnection(ctx, req.TargetTherapistID, req.ClientID(), req.ClientType(), req.ConnectionType(), &assignedBy)
			if err != nil {
				return err
			}
		}

		now := s.now()
		ok, err := s.requests.UpdateStatus(ctx, req.ID, status, actorID, now)
		if err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		if !ok {
			return alreadyProcessed(req)
		}

		req.Status = status
		req.ProcessedAt = &now
		req.ProcessedBy = &actorID
		return nil
	})
	if err != nil {
		return false, err
	}

	if conn != nil {
		s.logger.Info("Connection request approved",
			zap.Int64("request_id", requestID),
			zap.Int64("connection_id", conn.ID),
			zap.Int64("actor_id", actorID),
		)
		publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventRequestApproved, actorID, req.ID, requestSubjects(req)...))
		publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventConnectionCreated, actorID, conn.ID, conn.TherapistID, conn.ClientID))
	} else {
		s.logger.Info("Connection request declined",
			zap.Int64("request_id", requestID),
			zap.Int64("actor_id", actorID),
		)
		publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventRequestDeclined, actorID, req.ID, requestSubjects(req)...))
	}

	return true, nil
}

func alreadyProcessed(req *model.ConnectionRequest) error {
	return apperr.Newf(apperr.KindAlreadyProcessed, "request is already %s", req.Status).With("request_id", req.ID)
}

// ============ Чтение ============

// GetRequest получает заявку по ID
func (s *RequestService) GetRequest(ctx context.Context, requestID int64) (*model.ConnectionRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperr.New(apperr.KindNotFound, "request not found").With("request_id", requestID)
	}
	return req, nil
}

// GetPendingRequests получает pending заявки терапевта, новые первыми
func (s *RequestService) GetPendingRequests(ctx context.Context, therapistID int64) ([]*model.ConnectionRequest, error) {
	requests, err := s.requests.GetPendingByTherapist(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("get pending requests: %w", err)
	}
	return requests, nil
}

// GetRequesterRequests получает заявки опекуна, новые первыми
func (s *RequestService) GetRequesterRequests(ctx context.Context, requesterID int64) ([]*model.ConnectionRequest, error) {
	requests, err := s.requests.GetByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get requester requests: %w", err)
	}
	return requests, nil
}

// CountPendingRequests подсчитывает pending заявки терапевта
func (s *RequestService) CountPendingRequests(ctx context.Context, therapistID int64) (int, error) {
	count, err := s.requests.CountPendingByTherapist(ctx, therapistID)
	if err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}
	return count, nil
}

// HasPendingRequest проверяет pending заявку опекуна к терапевту
func (s *RequestService) HasPendingRequest(ctx context.Context, requesterID, therapistID int64) (bool, error) {
	ok, err := s.requests.HasPending(ctx, requesterID, therapistID, nil)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return ok, nil
}

// HasPendingChildAssignment проверяет pending заявку на прикрепление ребёнка
func (s *RequestService) HasPendingChildAssignment(ctx context.Context, guardianID, childID, therapistID int64) (bool, error) {
	ok, err := s.requests.HasPending(ctx, guardianID, therapistID, &childID)
	if err != nil {
		return false, fmt.Errorf("check pending child assignment: %w", err)
	}
	return ok, nil
}

// ============ Напоминания ============

// RemindStalePending напоминает терапевтам о pending заявках, чей возраст попал в
// (olderThan, olderThan+window]. При вызове раз в window каждая заявка напоминается один раз.
func (s *RequestService) RemindStalePending(ctx context.Context, olderThan, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, apperr.New(apperr.KindValidation, "reminder window must be positive")
	}

	to := s.now().Add(-olderThan)
	requests, err := s.requests.GetPendingCreatedBetween(ctx, to.Add(-window), to)
	if err != nil {
		return 0, fmt.Errorf("get stale requests: %w", err)
	}

	for _, req := range requests {
		publish(ctx, s.notifier, s.logger, model.NewEvent(model.EventRequestReminder, 0, req.ID, req.TargetTherapistID))
	}

	return len(requests), nil
}
