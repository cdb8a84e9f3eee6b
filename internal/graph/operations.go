// Package graph declares the operation catalogue of the backing graph
// service: every operation a gateway may execute, with its argument and
// result shapes. The catalogue is fixed at build time; no dynamic field
// selection exists, which keeps the boundary statically verifiable.
package graph

import (
	"encoding/json"
	"time"

	"warikan/internal/domain"
)

// Operation names. The wire request carries one of these plus the matching
// variables shape.
const (
	OpGetGroup        = "getGroup"
	OpGetGroupsByUser = "getGroupsByUser"
	OpGetPayment      = "getPayment"
	OpCreateGroup     = "createGroup"
	OpCreatePayment   = "createPayment"
	OpCreateUser      = "createUser"
	OpDeleteGroup     = "deleteGroup"
	OpDeletePayment   = "deletePayment"
	OpDeleteUser      = "deleteUser"
)

// Request is the wire envelope for one operation execution.
type Request struct {
	Operation string          `json:"operation"`
	Variables json.RawMessage `json:"variables,omitempty"`
}

// Response is the wire envelope for a result. Exactly one of Data and Error
// is set; an absent entity is Data:null with no Error, so callers can
// distinguish "nothing there" from "the call failed".
type Response struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a service-reported operation failure.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Variable shapes.

// IDVars selects a single entity; shared by the get and delete operations.
type IDVars struct {
	ID string `json:"id"`
}

type CreateGroupVars struct {
	Title string `json:"title"`
}

type CreatePaymentVars struct {
	Group    string   `json:"group"`
	Creditor string   `json:"creditor"`
	Debtors  []string `json:"debtors"`
	Title    string   `json:"title"`
}

type CreateUserVars struct {
	Name string `json:"name"`
}

// Result shapes.

// GroupDetail is the aggregate resolved by getGroup: the group together with
// its participants and payments in one round trip. This is the shape the
// route loader tree fetches once per navigation and shares downward.
type GroupDetail struct {
	ID           domain.GroupID   `json:"id"`
	CreatedAt    time.Time        `json:"createdAt"`
	Title        string           `json:"title"`
	Participants []domain.User    `json:"participants"`
	Payments     []domain.Payment `json:"payments"`
}

// Group converts the wire aggregate back into the domain shape.
func (d GroupDetail) Group() domain.Group {
	return domain.Group{
		ID:           d.ID,
		CreatedAt:    d.CreatedAt,
		Title:        d.Title,
		Participants: d.Participants,
		Payments:     d.Payments,
	}
}

// GroupSummary is the lighter listing shape resolved by getGroupsByUser:
// participants as bare IDs, no payments.
type GroupSummary struct {
	ID           domain.GroupID  `json:"id"`
	CreatedAt    time.Time       `json:"createdAt"`
	Title        string          `json:"title"`
	Participants []domain.UserID `json:"participants"`
}

// DeletedID confirms a removal.
type DeletedID struct {
	ID string `json:"id"`
}
