package model

import "time"

type RequestType string

const (
	RequestTypeGuardianToTherapist     RequestType = "guardian_to_therapist"
	RequestTypeGuardianChildAssignment RequestType = "guardian_child_assignment"
)

type RequestStatus string

// Request status constants
const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDeclined RequestStatus = "declined"
)

type RequestAction string

const (
	RequestActionApprove RequestAction = "approve"
	RequestActionDecline RequestAction = "decline"
)

// ConnectionRequest represents a guardian's ask for a future connection.
// The row stays after processing as an audit trail.
type ConnectionRequest struct {
	ID                int64         `json:"id"`
	RequesterID       int64         `json:"requester_id"`
	TargetTherapistID int64         `json:"target_therapist_id"`
	TargetClientID    *int64        `json:"target_client_id"` // set for child assignment requests
	RequestType       RequestType   `json:"request_type"`
	Message           string        `json:"message"`
	Status            RequestStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	ProcessedAt       *time.Time    `json:"processed_at"`
	ProcessedBy       *int64        `json:"processed_by"`
}

// IsPending checks if request is pending
func (r *ConnectionRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsApproved checks if request is approved
func (r *ConnectionRequest) IsApproved() bool {
	return r.Status == RequestStatusApproved
}

// IsDeclined checks if request is declined
func (r *ConnectionRequest) IsDeclined() bool {
	return r.Status == RequestStatusDeclined
}

// ClientID returns the user that becomes the client once the request is approved
func (r *ConnectionRequest) ClientID() int64 {
	if r.RequestType == RequestTypeGuardianChildAssignment && r.TargetClientID != nil {
		return *r.TargetClientID
	}
	return r.RequesterID
}

// ClientType returns the client type of the connection created on approval
func (r *ConnectionRequest) ClientType() ClientType {
	if r.RequestType == RequestTypeGuardianChildAssignment {
		return ClientTypeChild
	}
	return ClientTypeGuardian
}

// ConnectionType returns the connection type derived from the request type
func (r *ConnectionRequest) ConnectionType() ConnectionType {
	if r.RequestType == RequestTypeGuardianChildAssignment {
		return ConnectionTypeGuardianChildAssignment
	}
	return ConnectionTypeGuardianRequested
}
