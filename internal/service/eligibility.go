package service

import (
	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
)

// EligibilityChecker проверяет, может ли пользователь быть участником связи. Без побочных эффектов.
type EligibilityChecker struct{}

func NewEligibilityChecker() *EligibilityChecker {
	return &EligibilityChecker{}
}

// CheckTherapist: роль therapist и статус active
func (c *EligibilityChecker) CheckTherapist(user *model.User) error {
	if user == nil {
		return apperr.New(apperr.KindNotFound, "therapist not found")
	}
	if !user.HasRole(model.RoleTherapist) {
		return apperr.New(apperr.KindInvalidRole, "user is not a therapist").With("user_id", user.ID)
	}
	if !user.IsActive() {
		return apperr.New(apperr.KindInactiveUser, "therapist is not active").With("user_id", user.ID)
	}
	return nil
}

// IsEligibleTherapist булева версия CheckTherapist
func (c *EligibilityChecker) IsEligibleTherapist(user *model.User) bool {
	return c.CheckTherapist(user) == nil
}

// CheckClient: роль guardian или child (или ровно requiredRole, если задана) и статус active
func (c *EligibilityChecker) CheckClient(user *model.User, requiredRole model.Role) error {
	if user == nil {
		return apperr.New(apperr.KindNotFound, "client not found")
	}
	if !user.HasAnyRole(model.RoleGuardian, model.RoleChild) {
		return apperr.New(apperr.KindInvalidRole, "user cannot be a client").With("user_id", user.ID)
	}
	if requiredRole != "" && !user.HasRole(requiredRole) {
		return apperr.Newf(apperr.KindInvalidRole, "client must be a %s", requiredRole).With("user_id", user.ID)
	}
	if !user.IsActive() {
		return apperr.New(apperr.KindInactiveUser, "client is not active").With("user_id", user.ID)
	}
	return nil
}

// IsEligibleClient булева версия CheckClient
func (c *EligibilityChecker) IsEligibleClient(user *model.User, requiredRole model.Role) bool {
	return c.CheckClient(user, requiredRole) == nil
}

// CheckChildOwnership: ребёнок принадлежит этому опекуну
func (c *EligibilityChecker) CheckChildOwnership(child, guardian *model.User) error {
	if !guardian.IsGuardianOf(child) {
		err := apperr.New(apperr.KindOwnership, "you may only assign your own children")
		if child != nil {
			err.With("child_id", child.ID)
		}
		return err
	}
	return nil
}

// CheckChildGuardian: guardian_id ребёнка указывает на активного опекуна
func (c *EligibilityChecker) CheckChildGuardian(child, guardian *model.User) error {
	if guardian == nil || !guardian.HasRole(model.RoleGuardian) || !guardian.IsGuardianOf(child) {
		return apperr.New(apperr.KindOwnership, "child has no guardian").With("child_id", child.ID)
	}
	if !guardian.IsActive() {
		return apperr.New(apperr.KindInactiveUser, "child's guardian is not active").With("guardian_id", guardian.ID)
	}
	return nil
}
