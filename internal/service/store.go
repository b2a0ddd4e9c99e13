package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/careconnect/internal/model"
)

// UserStore только читает данные внешней подсистемы идентификации
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

// ConnectionStore хранилище связей. GetByID* возвращают nil, nil если связи нет.
type ConnectionStore interface {
	Create(ctx context.Context, conn *model.Connection) error
	GetByID(ctx context.Context, id int64) (*model.Connection, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Connection, error)
	HasActiveBetween(ctx context.Context, userA, userB int64) (bool, error)
	Terminate(ctx context.Context, id int64, at time.Time) (bool, error)
	ListForPair(ctx context.Context, therapistID, clientID int64) ([]*model.Connection, error)
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*model.Connection, error)
}

// RequestStore хранилище заявок. GetByID* возвращают nil, nil если заявки нет.
type RequestStore interface {
	Create(ctx context.Context, req *model.ConnectionRequest) error
	GetByID(ctx context.Context, id int64) (*model.ConnectionRequest, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.ConnectionRequest, error)
	GetPendingByTherapist(ctx context.Context, therapistID int64) ([]*model.ConnectionRequest, error)
	GetByRequester(ctx context.Context, requesterID int64) ([]*model.ConnectionRequest, error)
	GetPendingCreatedBetween(ctx context.Context, from, to time.Time) ([]*model.ConnectionRequest, error)
	HasPending(ctx context.Context, requesterID, therapistID int64, clientID *int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status model.RequestStatus, processedBy int64, at time.Time) (bool, error)
	CountPendingByTherapist(ctx context.Context, therapistID int64) (int, error)
}

// Transactor выполняет функцию в одной транзакции хранилища
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier получает события после смены состояния. Ошибка только логируется.
type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
}

// NopNotifier ничего не делает
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.Event) error { return nil }
