package service

import (
	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
)

// PermissionGate решает, кто может создавать, одобрять и отклонять заявки и связи
type PermissionGate struct{}

func NewPermissionGate() *PermissionGate {
	return &PermissionGate{}
}

// CanCreateConnectionRequest: только активный опекун
func (g *PermissionGate) CanCreateConnectionRequest(actor *model.User) bool {
	return actor.HasRole(model.RoleGuardian) && actor.IsActive()
}

// CanCreateAdminConnection: только активный админ
func (g *PermissionGate) CanCreateAdminConnection(actor *model.User) bool {
	return actor.HasRole(model.RoleAdmin) && actor.IsActive()
}

// CanApproveOrDecline: терапевт, которому адресована заявка, или админ
func (g *PermissionGate) CanApproveOrDecline(actor *model.User, req *model.ConnectionRequest) bool {
	if actor == nil || req == nil {
		return false
	}
	return actor.ID == req.TargetTherapistID || actor.HasRole(model.RoleAdmin)
}

// CanAssignChild: активный опекун этого ребёнка
func (g *PermissionGate) CanAssignChild(actor, child *model.User) bool {
	return g.CanCreateConnectionRequest(actor) && actor.IsGuardianOf(child)
}

// CanTerminate: участник связи, опекун ребёнка-клиента или админ
func (g *PermissionGate) CanTerminate(actor *model.User, conn *model.Connection, client *model.User) bool {
	if actor == nil || conn == nil {
		return false
	}
	if conn.Involves(actor.ID) || actor.HasRole(model.RoleAdmin) {
		return true
	}
	return conn.ClientType == model.ClientTypeChild && actor.IsGuardianOf(client)
}

// actorError объясняет, почему актор не прошёл проверку роли
func actorError(actor *model.User, role model.Role) error {
	if actor == nil {
		return apperr.New(apperr.KindUnauthorized, "actor not found")
	}
	if !actor.HasRole(role) {
		return apperr.Newf(apperr.KindInvalidRole, "only a %s can do this", role).With("user_id", actor.ID)
	}
	if !actor.IsActive() {
		return apperr.New(apperr.KindInactiveUser, "your account is not active").With("user_id", actor.ID)
	}
	return apperr.New(apperr.KindUnauthorized, "not allowed").With("user_id", actor.ID)
}
