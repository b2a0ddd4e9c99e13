package model

import "time"

type ClientType string

const (
	ClientTypeGuardian ClientType = "guardian"
	ClientTypeChild    ClientType = "child"
)

type ConnectionType string

const (
	ConnectionTypeAdminAssigned           ConnectionType = "admin_assigned"
	ConnectionTypeGuardianRequested       ConnectionType = "guardian_requested"
	ConnectionTypeGuardianChildAssignment ConnectionType = "guardian_child_assignment"
)

type ConnectionStatus string

const (
	ConnectionStatusActive     ConnectionStatus = "active"
	ConnectionStatusTerminated ConnectionStatus = "terminated"
)

// Connection represents a therapeutic relationship between a therapist and a client.
// Terminated rows are kept for history.
type Connection struct {
	ID             int64            `json:"id"`
	TherapistID    int64            `json:"therapist_id"`
	ClientID       int64            `json:"client_id"`
	ClientType     ClientType       `json:"client_type"`
	ConnectionType ConnectionType   `json:"connection_type"`
	Status         ConnectionStatus `json:"status"`
	AssignedAt     time.Time        `json:"assigned_at"`
	TerminatedAt   *time.Time       `json:"terminated_at"`
	AssignedBy     *int64           `json:"assigned_by"` // admin or guardian who created it
}

// IsActive checks if connection is active
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionStatusActive
}

// Involves checks if the user is either side of the connection
func (c *Connection) Involves(userID int64) bool {
	return c.TherapistID == userID || c.ClientID == userID
}

// ConnectionView is a connection with both parties already loaded
type ConnectionView struct {
	Connection *Connection `json:"connection"`
	Therapist  *User       `json:"therapist,omitempty"`
	Client     *User       `json:"client,omitempty"`
}

// ClientTypeForRole maps a client's role to the connection client type
func ClientTypeForRole(role Role) (ClientType, bool) {
	switch role {
	case RoleGuardian:
		return ClientTypeGuardian, true
	case RoleChild:
		return ClientTypeChild, true
	default:
		return "", false
	}
}
