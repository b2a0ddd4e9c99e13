package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func therapistRequest(requester, therapist int64, msg string) CreateRequestInput {
	return CreateRequestInput{
		RequesterID:       requester,
		TargetTherapistID: therapist,
		RequestType:       model.RequestTypeGuardianToTherapist,
		Message:           msg,
	}
}

func childRequest(requester, therapist, child int64) CreateRequestInput {
	return CreateRequestInput{
		RequesterID:       requester,
		TargetTherapistID: therapist,
		TargetClientID:    ptr(child),
		RequestType:       model.RequestTypeGuardianChildAssignment,
		Message:           "Please take my child as well",
	}
}

func TestCreateRequest_GuardianToTherapist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, "  Need help with anxiety  "))
	require.NoError(t, err)

	assert.NotZero(t, req.ID)
	assert.Equal(t, model.RequestStatusPending, req.Status)
	assert.Equal(t, "Need help with anxiety", req.Message)
	assert.Nil(t, req.TargetClientID)
	assert.Equal(t, []model.EventType{model.EventRequestCreated}, env.notifier.types())

	pending, err := env.requests.HasPendingRequest(ctx, guardianID, therapistID)
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestCreateRequest_DuplicatePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	_, err = env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, "Trying once more"))
	assert.ErrorIs(t, err, apperr.ErrDuplicateRequest)
}

func TestCreateRequest_AlreadyConnected(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, guardianID, therapistID)

	_, err := env.requests.CreateRequest(context.Background(), therapistRequest(guardianID, therapistID, ""))
	assert.ErrorIs(t, err, apperr.ErrConnectionAlreadyExists)
}

func TestCreateRequest_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateRequestInput
	}{
		{"message too long", therapistRequest(guardianID, therapistID, strings.Repeat("a", 1001))},
		{"unknown type", CreateRequestInput{RequesterID: guardianID, TargetTherapistID: therapistID, RequestType: "sibling"}},
		{"missing therapist", CreateRequestInput{RequesterID: guardianID, RequestType: model.RequestTypeGuardianToTherapist}},
		{"assignment without child", CreateRequestInput{RequesterID: guardianID, TargetTherapistID: therapistID, RequestType: model.RequestTypeGuardianChildAssignment}},
		{"therapist request with child", CreateRequestInput{RequesterID: guardianID, TargetTherapistID: therapistID, TargetClientID: ptr(childID), RequestType: model.RequestTypeGuardianToTherapist}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.requests.CreateRequest(ctx, tt.input)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	// ровно 1000 символов допустимо
	_, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, strings.Repeat("ж", 1000)))
	assert.NoError(t, err)
}

func TestCreateRequest_ShortMessage(t *testing.T) {
	env := newTestEnv(t)

	req, err := env.requests.CreateRequest(context.Background(), therapistRequest(guardianID, therapistID, "Need help"))
	require.NoError(t, err)
	assert.Equal(t, "Need help", req.Message)
	assert.Nil(t, req.TargetClientID)
	assert.Equal(t, model.RequestStatusPending, req.Status)
}

func TestCreateRequest_RoleChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.requests.CreateRequest(ctx, therapistRequest(therapistID, therapistID, ""))
	assert.ErrorIs(t, err, apperr.ErrInvalidRole)

	_, err = env.requests.CreateRequest(ctx, therapistRequest(inactiveGuardianID, therapistID, ""))
	assert.ErrorIs(t, err, apperr.ErrInactiveUser)

	_, err = env.requests.CreateRequest(ctx, therapistRequest(guardianID, otherGuardianID, ""))
	assert.ErrorIs(t, err, apperr.ErrInvalidRole)

	_, err = env.requests.CreateRequest(ctx, therapistRequest(guardianID, inactiveTherapist, ""))
	assert.ErrorIs(t, err, apperr.ErrInactiveUser)

	_, err = env.requests.CreateRequest(ctx, therapistRequest(guardianID, 999, ""))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateRequest_ChildAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, guardianID, therapistID)

	req, err := env.requests.CreateRequest(ctx, childRequest(guardianID, therapistID, childID))
	require.NoError(t, err)
	assert.Equal(t, model.RequestTypeGuardianChildAssignment, req.RequestType)
	require.NotNil(t, req.TargetClientID)
	assert.Equal(t, childID, *req.TargetClientID)

	pending, err := env.requests.HasPendingChildAssignment(ctx, guardianID, childID, therapistID)
	require.NoError(t, err)
	assert.True(t, pending)

	// заявка к терапевту и заявка на ребёнка это разные тройки
	pending, err = env.requests.HasPendingRequest(ctx, guardianID, therapistID)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestCreateRequest_ChildAssignmentRequiresGuardianConnection(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.requests.CreateRequest(context.Background(), childRequest(otherGuardianID, therapistID, otherChildID))
	assert.ErrorIs(t, err, apperr.ErrPrerequisiteNotMet)
}

func TestCreateRequest_ChildAssignmentOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, otherGuardianID, therapistID)

	_, err := env.requests.CreateRequest(context.Background(), childRequest(otherGuardianID, therapistID, childID))
	require.ErrorIs(t, err, apperr.ErrOwnership)

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "you may only assign your own children", e.Message)
}

func TestCreateRequest_ChildAlreadyConnected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, guardianID, therapistID)

	_, err := env.connections.CreateConnection(ctx, therapistID, childID, model.ClientTypeChild, model.ConnectionTypeAdminAssigned, ptr(adminID))
	require.NoError(t, err)

	_, err = env.requests.CreateRequest(ctx, childRequest(guardianID, therapistID, childID))
	assert.ErrorIs(t, err, apperr.ErrConnectionAlreadyExists)
}

func TestProcessRequest_Approve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, "Need help"))
	require.NoError(t, err)

	ok, err := env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, therapistID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := env.requests.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, stored.Status)
	require.NotNil(t, stored.ProcessedBy)
	assert.Equal(t, therapistID, *stored.ProcessedBy)

	views, err := env.connections.ListConnections(ctx, guardianID, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	conn := views[0].Connection
	assert.Equal(t, therapistID, conn.TherapistID)
	assert.Equal(t, guardianID, conn.ClientID)
	assert.Equal(t, model.ClientTypeGuardian, conn.ClientType)
	assert.Equal(t, model.ConnectionTypeGuardianRequested, conn.ConnectionType)
	assert.Equal(t, model.ConnectionStatusActive, conn.Status)
	require.NotNil(t, conn.AssignedBy)
	assert.Equal(t, guardianID, *conn.AssignedBy)
	assert.Equal(t, "Theo", views[0].Therapist.FirstName)
	assert.Equal(t, "Grace", views[0].Client.FirstName)

	assert.Equal(t, []model.EventType{
		model.EventRequestCreated,
		model.EventRequestApproved,
		model.EventConnectionCreated,
	}, env.notifier.types())
}

func TestProcessRequest_ApproveChildAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, guardianID, therapistID)

	req, err := env.requests.CreateRequest(ctx, childRequest(guardianID, therapistID, childID))
	require.NoError(t, err)

	_, err = env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, therapistID)
	require.NoError(t, err)

	linked, err := env.connections.HasActiveConnection(ctx, childID, therapistID)
	require.NoError(t, err)
	assert.True(t, linked)

	views, err := env.connections.ListConnections(ctx, childID, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, model.ClientTypeChild, views[0].Connection.ClientType)
	assert.Equal(t, model.ConnectionTypeGuardianChildAssignment, views[0].Connection.ConnectionType)
}

func TestProcessRequest_DeclineCreatesNoConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	ok, err := env.requests.ProcessRequest(ctx, req.ID, model.RequestActionDecline, therapistID)
	require.NoError(t, err)
	assert.True(t, ok)

	linked, err := env.connections.HasActiveConnection(ctx, guardianID, therapistID)
	require.NoError(t, err)
	assert.False(t, linked)

	stored, err := env.requests.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeclined())

	// после отклонения можно подать новую заявку
	_, err = env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	assert.NoError(t, err)
}

func TestProcessRequest_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	_, err = env.requests.ProcessRequest(ctx, 404, model.RequestActionApprove, therapistID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, guardianID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, 12345)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = env.requests.ProcessRequest(ctx, req.ID, "maybe", therapistID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// админ действует от имени терапевта
	ok, err := env.requests.ProcessRequest(ctx, req.ID, model.RequestActionDecline, adminID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, therapistID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
}

func TestProcessRequest_SecondCallIsAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	_, err = env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, therapistID)
	require.NoError(t, err)

	ok, err := env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, therapistID)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	views, err := env.connections.ListConnections(ctx, guardianID, false)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestProcessRequest_ConcurrentApprovalsCreateOneConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		kinds     []apperr.Kind
	)
	for i := 0; i < workers; i++ {
		actor := therapistID
		if i%2 == 0 {
			actor = adminID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, actor)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				successes++
			} else {
				kinds = append(kinds, apperr.KindOf(err))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, k := range kinds {
		assert.Equal(t, apperr.KindAlreadyProcessed, k)
	}

	views, err := env.connections.ListConnections(ctx, guardianID, false)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestProcessRequest_ApproveLosesToAdminConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	_, err = env.connections.CreateAdminConnection(ctx, adminID, therapistID, guardianID)
	require.NoError(t, err)

	_, err = env.requests.ProcessRequest(ctx, req.ID, model.RequestActionApprove, therapistID)
	assert.ErrorIs(t, err, apperr.ErrDuplicateConnection)

	// транзакция откатилась: заявка всё ещё pending
	stored, err := env.requests.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPending())
}

func TestGetPendingRequests_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	env.store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	first, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)
	second, err := env.requests.CreateRequest(ctx, therapistRequest(otherGuardianID, therapistID, ""))
	require.NoError(t, err)
	third, err := env.requests.CreateRequest(ctx, therapistRequest(thirdGuardianID, therapistID, ""))
	require.NoError(t, err)

	_, err = env.requests.ProcessRequest(ctx, second.ID, model.RequestActionDecline, therapistID)
	require.NoError(t, err)

	pending, err := env.requests.GetPendingRequests(ctx, therapistID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, third.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)

	count, err := env.requests.CountPendingRequests(ctx, therapistID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mine, err := env.requests.GetRequesterRequests(ctx, otherGuardianID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsDeclined())
}

func TestRemindStalePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	env.requests.now = func() time.Time { return now }

	env.store.SetClock(func() time.Time { return now.Add(-24*time.Hour - 30*time.Minute) })
	_, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	env.store.SetClock(func() time.Time { return now.Add(-time.Hour) })
	_, err = env.requests.CreateRequest(ctx, therapistRequest(otherGuardianID, therapistID, ""))
	require.NoError(t, err)

	n, err := env.requests.RemindStalePending(ctx, 24*time.Hour, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	types := env.notifier.types()
	assert.Equal(t, model.EventRequestReminder, types[len(types)-1])
}

func TestRemindStalePending_OncePerRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	env.requests.now = func() time.Time { return now }

	env.store.SetClock(func() time.Time { return now.Add(-24*time.Hour - 30*time.Minute) })
	_, err := env.requests.CreateRequest(ctx, therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)

	n, err := env.requests.RemindStalePending(ctx, 24*time.Hour, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// следующие тики планировщика: заявка уже вне окна
	for tick := 1; tick <= 3; tick++ {
		env.requests.now = func() time.Time { return now.Add(time.Duration(tick) * time.Hour) }
		n, err = env.requests.RemindStalePending(ctx, 24*time.Hour, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, n, "tick %d", tick)
	}

	reminders := 0
	for _, typ := range env.notifier.types() {
		if typ == model.EventRequestReminder {
			reminders++
		}
	}
	assert.Equal(t, 1, reminders)

	_, err = env.requests.RemindStalePending(ctx, 24*time.Hour, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := newTestEnvWithLogger(t, zap.New(core))

	failing := &mockNotifier{}
	failing.On("Notify", mock.Anything, mock.AnythingOfType("model.Event")).Return(assert.AnError)
	env.requests.notifier = failing

	req, err := env.requests.CreateRequest(context.Background(), therapistRequest(guardianID, therapistID, ""))
	require.NoError(t, err)
	assert.True(t, req.IsPending())

	failing.AssertCalled(t, "Notify", mock.Anything, mock.AnythingOfType("model.Event"))
	require.Equal(t, 1, logs.FilterMessage("Failed to dispatch notification").Len())
}
