package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestApproved      EventType = "request_approved"
	EventRequestDeclined      EventType = "request_declined"
	EventRequestReminder      EventType = "request_reminder"
	EventConnectionCreated    EventType = "connection_created"
	EventConnectionTerminated EventType = "connection_terminated"
)

// Event is the payload handed to the notification dispatcher after a state transition.
// EntityID is a connection id for connection_* events and a request id otherwise.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"event_type"`
	ActorID    int64     `json:"actor_id"`
	SubjectIDs []int64   `json:"subject_ids"`
	EntityID   int64     `json:"entity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh id
func NewEvent(eventType EventType, actorID, entityID int64, subjectIDs ...int64) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		ActorID:    actorID,
		SubjectIDs: subjectIDs,
		EntityID:   entityID,
		Timestamp:  time.Now().UTC(),
	}
}
