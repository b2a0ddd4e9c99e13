// Package memory: хранилище в памяти с теми же гарантиями уникальности, что и у Postgres.
// Используется в тестах сервисов и контроллера.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/Freeeeeet/careconnect/internal/repository/base"
)

type txKey struct{}

// Store хранит пользователей, связи и заявки
type Store struct {
	txMu sync.Mutex   // сериализует транзакции
	mu   sync.RWMutex // защищает данные

	users       map[int64]*model.User
	connections map[int64]*model.Connection
	requests    map[int64]*model.ConnectionRequest

	nextConnectionID int64
	nextRequestID    int64

	now func() time.Time
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		users:       make(map[int64]*model.User),
		connections: make(map[int64]*model.Connection),
		requests:    make(map[int64]*model.ConnectionRequest),
		now:         time.Now,
	}
}

// SetClock подменяет источник времени
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser добавляет пользователя (идентификация внешняя, поэтому только для заполнения)
func (s *Store) AddUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
}

// Users возвращает репозиторий пользователей
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Connections возвращает репозиторий связей
func (s *Store) Connections() *ConnectionRepo { return &ConnectionRepo{s: s} }

// Requests возвращает репозиторий заявок
func (s *Store) Requests() *RequestRepo { return &RequestRepo{s: s} }

type snapshot struct {
	connections      map[int64]*model.Connection
	requests         map[int64]*model.ConnectionRequest
	nextConnectionID int64
	nextRequestID    int64
}

// WithinTx выполняет fn эксклюзивно относительно других транзакций и откатывает изменения при ошибке
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		connections:      make(map[int64]*model.Connection, len(s.connections)),
		requests:         make(map[int64]*model.ConnectionRequest, len(s.requests)),
		nextConnectionID: s.nextConnectionID,
		nextRequestID:    s.nextRequestID,
	}
	for id, c := range s.connections {
		cp := *c
		snap.connections[id] = &cp
	}
	for id, r := range s.requests {
		cp := *r
		snap.requests[id] = &cp
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections = snap.connections
	s.requests = snap.requests
	s.nextConnectionID = snap.nextConnectionID
	s.nextRequestID = snap.nextRequestID
}

// ============ Пользователи ============

type UserRepo struct {
	s *Store
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *UserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) GetByIDs(_ context.Context, ids []int64) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			users = append(users, &cp)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ============ Связи ============

type ConnectionRepo struct {
	s *Store
}

func (r *ConnectionRepo) Create(_ context.Context, conn *model.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if conn.Status == model.ConnectionStatusActive {
		for _, c := range r.s.connections {
			if c.IsActive() && c.TherapistID == conn.TherapistID && c.ClientID == conn.ClientID {
				return fmt.Errorf("create connection: %w", base.ErrDuplicate)
			}
		}
	}

	r.s.nextConnectionID++
	conn.ID = r.s.nextConnectionID
	conn.AssignedAt = r.s.now()

	cp := *conn
	r.s.connections[cp.ID] = &cp
	return nil
}

func (r *ConnectionRepo) GetByID(_ context.Context, id int64) (*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if c, ok := r.s.connections[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// GetByIDForUpdate в памяти совпадает с GetByID: блокировку даёт WithinTx
func (r *ConnectionRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Connection, error) {
	return r.GetByID(ctx, id)
}

func (r *ConnectionRepo) HasActiveBetween(_ context.Context, userA, userB int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.connections {
		if !c.IsActive() {
			continue
		}
		if (c.TherapistID == userA && c.ClientID == userB) || (c.TherapistID == userB && c.ClientID == userA) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ConnectionRepo) Terminate(_ context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.connections[id]
	if !ok || !c.IsActive() {
		return false, nil
	}
	c.Status = model.ConnectionStatusTerminated
	c.TerminatedAt = &at
	return true, nil
}

func (r *ConnectionRepo) ListForPair(_ context.Context, therapistID, clientID int64) ([]*model.Connection, error) {
	return r.filter(func(c *model.Connection) bool {
		return c.TherapistID == therapistID && c.ClientID == clientID
	}), nil
}

func (r *ConnectionRepo) ListByUser(_ context.Context, userID int64, activeOnly bool) ([]*model.Connection, error) {
	return r.filter(func(c *model.Connection) bool {
		return c.Involves(userID) && (!activeOnly || c.IsActive())
	}), nil
}

func (r *ConnectionRepo) filter(keep func(c *model.Connection) bool) []*model.Connection {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Connection
	for _, c := range r.s.connections {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.After(out[j].AssignedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ============ Заявки ============

type RequestRepo struct {
	s *Store
}

func sameClient(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *RequestRepo) Create(_ context.Context, req *model.ConnectionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if req.Status == model.RequestStatusPending {
		for _, existing := range r.s.requests {
			if existing.IsPending() &&
				existing.RequesterID == req.RequesterID &&
				existing.TargetTherapistID == req.TargetTherapistID &&
				sameClient(existing.TargetClientID, req.TargetClientID) {
				return fmt.Errorf("create connection request: %w", base.ErrDuplicate)
			}
		}
	}

	r.s.nextRequestID++
	req.ID = r.s.nextRequestID
	req.CreatedAt = r.s.now()

	cp := *req
	r.s.requests[cp.ID] = &cp
	return nil
}

func (r *RequestRepo) GetByID(_ context.Context, id int64) (*model.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if req, ok := r.s.requests[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, nil
}

// GetByIDForUpdate в памяти совпадает с GetByID: блокировку даёт WithinTx
func (r *RequestRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.ConnectionRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *RequestRepo) GetPendingByTherapist(_ context.Context, therapistID int64) ([]*model.ConnectionRequest, error) {
	return r.filter(func(req *model.ConnectionRequest) bool {
		return req.TargetTherapistID == therapistID && req.IsPending()
	}, true), nil
}

func (r *RequestRepo) GetByRequester(_ context.Context, requesterID int64) ([]*model.ConnectionRequest, error) {
	return r.filter(func(req *model.ConnectionRequest) bool {
		return req.RequesterID == requesterID
	}, true), nil
}

func (r *RequestRepo) GetPendingCreatedBetween(_ context.Context, from, to time.Time) ([]*model.ConnectionRequest, error) {
	return r.filter(func(req *model.ConnectionRequest) bool {
		return req.IsPending() && !req.CreatedAt.Before(from) && req.CreatedAt.Before(to)
	}, false), nil
}

func (r *RequestRepo) HasPending(_ context.Context, requesterID, therapistID int64, clientID *int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, req := range r.s.requests {
		if req.IsPending() &&
			req.RequesterID == requesterID &&
			req.TargetTherapistID == therapistID &&
			sameClient(req.TargetClientID, clientID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *RequestRepo) UpdateStatus(_ context.Context, id int64, status model.RequestStatus, processedBy int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || !req.IsPending() {
		return false, nil
	}
	req.Status = status
	req.ProcessedBy = &processedBy
	req.ProcessedAt = &at
	return true, nil
}

func (r *RequestRepo) CountPendingByTherapist(_ context.Context, therapistID int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, req := range r.s.requests {
		if req.TargetTherapistID == therapistID && req.IsPending() {
			count++
		}
	}
	return count, nil
}

func (r *RequestRepo) filter(keep func(req *model.ConnectionRequest) bool, newestFirst bool) []*model.ConnectionRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.ConnectionRequest
	for _, req := range r.s.requests {
		if keep(req) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newestFirst {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out
}
