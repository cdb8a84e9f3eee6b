// Package audit records one event per mutation against the ledger. Events
// are appended synchronously to an outbox in the mutation path (fail-closed:
// if the append fails, the mutation fails) and drained to the broker by a
// background worker.
package audit

import (
	"time"

	"github.com/google/uuid"

	"warikan/internal/domain"
)

// Action names the mutation an event records.
type Action string

const (
	ActionGroupCreated   Action = "group_created"
	ActionGroupDeleted   Action = "group_deleted"
	ActionPaymentCreated Action = "payment_created"
	ActionPaymentDeleted Action = "payment_deleted"
	ActionUserCreated    Action = "user_created"
	ActionUserDeleted    Action = "user_deleted"
)

// Event is one audit record. Subject is the ID of the entity acted on,
// Actor the authenticated caller.
type Event struct {
	ID        string        `json:"id"`
	Action    Action        `json:"action"`
	Actor     domain.UserID `json:"actor"`
	Subject   string        `json:"subject"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// NewEvent stamps an event with identity and time.
func NewEvent(action Action, actor domain.UserID, subject, requestID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     actor,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
