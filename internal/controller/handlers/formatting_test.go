package handlers

import (
	"testing"
	"time"

	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestPluralizeRequests(t *testing.T) {
	cases := map[int]string{
		1: "заявка", 2: "заявки", 4: "заявки", 5: "заявок",
		11: "заявок", 12: "заявок", 21: "заявка", 22: "заявки", 111: "заявок",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeRequests(n), n)
	}
}

func TestStartText(t *testing.T) {
	therapist := &model.User{ID: 2, Role: model.RoleTherapist, FirstName: "Theo", LastName: "Ward"}
	text := StartText(therapist, 3)
	assert.Contains(t, text, "Theo Ward")
	assert.Contains(t, text, "3 заявки")
	assert.Contains(t, text, "/requests")

	child := &model.User{ID: 3, Role: model.RoleChild, FirstName: "Cleo"}
	text = StartText(child, 0)
	assert.NotContains(t, text, "/requests")
	assert.Contains(t, text, "/connections")
}

func TestFormatPendingRequest(t *testing.T) {
	users := map[int64]*model.User{
		1: {ID: 1, FirstName: "Grace"},
		3: {ID: 3, FirstName: "Cleo"},
	}
	req := &model.ConnectionRequest{
		ID:                10,
		RequesterID:       1,
		TargetTherapistID: 2,
		TargetClientID:    int64Ptr(3),
		RequestType:       model.RequestTypeGuardianChildAssignment,
		Message:           "Please take my child as well",
		CreatedAt:         time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
	}

	text := FormatPendingRequest(1, req, users)
	assert.Contains(t, text, "<b>1. Grace</b> → 👶 Cleo")
	assert.Contains(t, text, "04.05.2026 10:30")
	assert.Contains(t, text, "<i>Please take my child as well</i>")

	req.Message = ""
	req.RequesterID = 99
	text = FormatPendingRequest(2, req, users)
	assert.Contains(t, text, "#99")
	assert.Contains(t, text, "Сообщение не указано")
}

func TestFormatPendingRequest_EscapesUserText(t *testing.T) {
	users := map[int64]*model.User{
		1: {ID: 1, FirstName: "Anna_Maria"},
		3: {ID: 3, FirstName: "Tom <Jr> & Co"},
	}
	req := &model.ConnectionRequest{
		ID:                11,
		RequesterID:       1,
		TargetTherapistID: 2,
		TargetClientID:    int64Ptr(3),
		RequestType:       model.RequestTypeGuardianChildAssignment,
		Message:           "my_son needs *urgent* help <now>",
		CreatedAt:         time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
	}

	text := FormatPendingRequest(1, req, users)
	assert.Contains(t, text, "<b>1. Anna_Maria</b>")
	assert.Contains(t, text, "👶 Tom &lt;Jr&gt; &amp; Co")
	assert.Contains(t, text, "<i>my_son needs *urgent* help &lt;now&gt;</i>")
	assert.NotContains(t, text, "<now>")
}

func TestFormatOwnRequest(t *testing.T) {
	users := map[int64]*model.User{2: {ID: 2, FirstName: "Theo"}}
	req := &model.ConnectionRequest{ID: 5, TargetTherapistID: 2, Status: model.RequestStatusDeclined}
	assert.Equal(t, "❌ Заявка #5 к Theo: Отклонена", FormatOwnRequest(req, users))
}

func TestFormatConnection(t *testing.T) {
	view := &model.ConnectionView{
		Connection: &model.Connection{
			ID:          1,
			TherapistID: 2,
			ClientID:    3,
			ClientType:  model.ClientTypeChild,
			Status:      model.ConnectionStatusActive,
			AssignedAt:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		Therapist: &model.User{ID: 2, FirstName: "Theo"},
		Client:    &model.User{ID: 3, FirstName: "Cleo"},
	}

	assert.Equal(t, "🟢 👶 Cleo, с 15.01.2026", FormatConnection(view, 2))
	assert.Equal(t, "🟢 🩺 Theo, с 15.01.2026", FormatConnection(view, 3))
	// опекун видит связь своего ребёнка
	assert.Equal(t, "🟢 🩺 Theo ↔ Cleo, с 15.01.2026", FormatConnection(view, 1))
}

func TestFormatConnection_EscapesNames(t *testing.T) {
	view := &model.ConnectionView{
		Connection: &model.Connection{
			ID:          1,
			TherapistID: 2,
			ClientID:    3,
			ClientType:  model.ClientTypeGuardian,
			Status:      model.ConnectionStatusActive,
			AssignedAt:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		Therapist: &model.User{ID: 2, FirstName: "Dr. <Who>"},
		Client:    &model.User{ID: 3, FirstName: "Anna_Maria"},
	}

	assert.Equal(t, "🟢 🩺 Dr. &lt;Who&gt;, с 15.01.2026", FormatConnection(view, 3))
	// подпись кнопки не размечается
	assert.Equal(t, "🩺 Dr. <Who>", connectionPeer(view, 3))
	assert.Equal(t, "Anna_Maria", connectionPeer(view, 2))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Grace", truncate("Grace", 15))
	assert.Equal(t, "Александ...", truncate("Александра", 8))
}
