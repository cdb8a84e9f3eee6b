package domain

import "github.com/google/uuid"

// Entity IDs are globally unique opaque strings. Equality of IDs implies
// equality of the referenced entity. New IDs are minted as UUIDs, but any
// non-empty string is accepted from the outside (the identity provider hands
// out its own subject identifiers for users).
type (
	UserID    string
	GroupID   string
	PaymentID string
)

func NewGroupID() GroupID     { return GroupID(uuid.NewString()) }
func NewPaymentID() PaymentID { return PaymentID(uuid.NewString()) }
func NewUserID() UserID       { return UserID(uuid.NewString()) }

func (id UserID) String() string    { return string(id) }
func (id GroupID) String() string   { return string(id) }
func (id PaymentID) String() string { return string(id) }

func (id UserID) IsNil() bool    { return id == "" }
func (id GroupID) IsNil() bool   { return id == "" }
func (id PaymentID) IsNil() bool { return id == "" }
