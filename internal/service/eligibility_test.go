package service

import (
	"testing"

	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestEligibilityChecker_Therapist(t *testing.T) {
	c := NewEligibilityChecker()

	tests := []struct {
		name string
		user *model.User
		kind apperr.Kind
	}{
		{"active therapist", &model.User{ID: 1, Role: model.RoleTherapist, Status: model.UserStatusActive}, ""},
		{"guardian", &model.User{ID: 1, Role: model.RoleGuardian, Status: model.UserStatusActive}, apperr.KindInvalidRole},
		{"inactive therapist", &model.User{ID: 1, Role: model.RoleTherapist, Status: model.UserStatusInactive}, apperr.KindInactiveUser},
		{"pending therapist", &model.User{ID: 1, Role: model.RoleTherapist, Status: model.UserStatusPending}, apperr.KindInactiveUser},
		{"missing", nil, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.CheckTherapist(tt.user)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.kind == "", c.IsEligibleTherapist(tt.user))
		})
	}
}

func TestEligibilityChecker_Client(t *testing.T) {
	c := NewEligibilityChecker()

	guardian := &model.User{ID: 1, Role: model.RoleGuardian, Status: model.UserStatusActive}
	child := &model.User{ID: 2, Role: model.RoleChild, Status: model.UserStatusActive, GuardianID: ptr(1)}
	admin := &model.User{ID: 3, Role: model.RoleAdmin, Status: model.UserStatusActive}
	inactiveChild := &model.User{ID: 4, Role: model.RoleChild, Status: model.UserStatusInactive, GuardianID: ptr(1)}

	assert.True(t, c.IsEligibleClient(guardian, ""))
	assert.True(t, c.IsEligibleClient(child, ""))
	assert.True(t, c.IsEligibleClient(child, model.RoleChild))
	assert.Equal(t, apperr.KindInvalidRole, apperr.KindOf(c.CheckClient(guardian, model.RoleChild)))
	assert.Equal(t, apperr.KindInvalidRole, apperr.KindOf(c.CheckClient(admin, "")))
	assert.Equal(t, apperr.KindInactiveUser, apperr.KindOf(c.CheckClient(inactiveChild, model.RoleChild)))
}

func TestEligibilityChecker_ChildOwnership(t *testing.T) {
	c := NewEligibilityChecker()

	guardian := &model.User{ID: 1, Role: model.RoleGuardian, Status: model.UserStatusActive}
	stranger := &model.User{ID: 9, Role: model.RoleGuardian, Status: model.UserStatusActive}
	child := &model.User{ID: 2, Role: model.RoleChild, Status: model.UserStatusActive, GuardianID: ptr(1)}
	orphan := &model.User{ID: 3, Role: model.RoleChild, Status: model.UserStatusActive}

	assert.NoError(t, c.CheckChildOwnership(child, guardian))
	assert.ErrorIs(t, c.CheckChildOwnership(child, stranger), apperr.ErrOwnership)
	assert.ErrorIs(t, c.CheckChildOwnership(orphan, guardian), apperr.ErrOwnership)

	assert.NoError(t, c.CheckChildGuardian(child, guardian))
	assert.ErrorIs(t, c.CheckChildGuardian(child, nil), apperr.ErrOwnership)

	inactive := &model.User{ID: 1, Role: model.RoleGuardian, Status: model.UserStatusInactive}
	assert.ErrorIs(t, c.CheckChildGuardian(child, inactive), apperr.ErrInactiveUser)
}
