package model

import "time"

type Role string

const (
	RoleChild     Role = "child"
	RoleGuardian  Role = "guardian"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusPending  UserStatus = "pending"
)

// User is owned by the identity subsystem; this module only reads it.
type User struct {
	ID         int64      `json:"id"`
	Role       Role       `json:"role"`
	Status     UserStatus `json:"status"`
	GuardianID *int64     `json:"guardian_id"` // only for children
	TelegramID *int64     `json:"telegram_id"` // nil = no Telegram account linked
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasRole checks the user's role
func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// HasAnyRole checks if the user holds one of the given roles
func (u *User) HasAnyRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsActive checks if user status is active
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// IsGuardianOf checks if the user is the owning guardian of the child
func (u *User) IsGuardianOf(child *User) bool {
	if u == nil || child == nil || child.GuardianID == nil {
		return false
	}
	return *child.GuardianID == u.ID
}

// DisplayName returns a printable name
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
