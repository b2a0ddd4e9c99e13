package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/Freeeeeet/careconnect/internal/repository/memory"
	"go.uber.org/zap"
)

const (
	guardianID         int64 = 1
	therapistID        int64 = 2
	childID            int64 = 3
	otherGuardianID    int64 = 4
	otherChildID       int64 = 5
	adminID            int64 = 6
	thirdGuardianID    int64 = 7
	inactiveTherapist  int64 = 8
	inactiveGuardianID int64 = 9
)

func ptr(v int64) *int64 { return &v }

// recordingNotifier собирает события в памяти
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event model.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) types() []model.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store       *memory.Store
	notifier    *recordingNotifier
	connections *ConnectionService
	requests    *RequestService
}

func seedUsers(store *memory.Store) {
	users := []*model.User{
		{ID: guardianID, Role: model.RoleGuardian, Status: model.UserStatusActive, FirstName: "Grace"},
		{ID: therapistID, Role: model.RoleTherapist, Status: model.UserStatusActive, FirstName: "Theo"},
		{ID: childID, Role: model.RoleChild, Status: model.UserStatusActive, GuardianID: ptr(guardianID), FirstName: "Cleo"},
		{ID: otherGuardianID, Role: model.RoleGuardian, Status: model.UserStatusActive, FirstName: "Gus"},
		{ID: otherChildID, Role: model.RoleChild, Status: model.UserStatusActive, GuardianID: ptr(otherGuardianID), FirstName: "Cal"},
		{ID: adminID, Role: model.RoleAdmin, Status: model.UserStatusActive, FirstName: "Ada"},
		{ID: thirdGuardianID, Role: model.RoleGuardian, Status: model.UserStatusActive, FirstName: "Gil"},
		{ID: inactiveTherapist, Role: model.RoleTherapist, Status: model.UserStatusInactive, FirstName: "Tim"},
		{ID: inactiveGuardianID, Role: model.RoleGuardian, Status: model.UserStatusPending, FirstName: "Gia"},
	}
	for _, u := range users {
		store.AddUser(u)
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, zap.NewNop())
}

func newTestEnvWithLogger(t *testing.T, logger *zap.Logger) *testEnv {
	t.Helper()

	store := memory.NewStore()
	seedUsers(store)

	notifier := &recordingNotifier{}
	gate := NewPermissionGate()
	eligibility := NewEligibilityChecker()

	connections := NewConnectionService(store, store.Connections(), store.Users(), gate, eligibility, notifier, logger)
	requests := NewRequestService(store, store.Requests(), connections, store.Users(), gate, eligibility, notifier, logger)

	return &testEnv{
		store:       store,
		notifier:    notifier,
		connections: connections,
		requests:    requests,
	}
}

func (e *testEnv) connect(t *testing.T, guardian, therapist int64) {
	t.Helper()
	_, err := e.connections.CreateConnection(context.Background(), therapist, guardian,
		model.ClientTypeGuardian, model.ConnectionTypeGuardianRequested, ptr(guardian))
	if err != nil {
		t.Fatalf("connect %d to %d: %v", guardian, therapist, err)
	}
}
