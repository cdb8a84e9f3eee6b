// Package store defines persistence for the graph service. Implementations
// return pkg/sentinel errors for factual states (not found, conflict) and
// never encode authorization rules; those live in the service layer.
package store

import (
	"context"

	"warikan/internal/domain"
)

// Store is the persistence boundary of the graph service. GetGroup returns
// the full aggregate (participants and payments hydrated); everything else
// works on single entities.
type Store interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	DeleteUser(ctx context.Context, id domain.UserID) error
	// UserReferences counts groups and payments that still reference the
	// user, for the restrict delete policy.
	UserReferences(ctx context.Context, id domain.UserID) (int, error)

	CreateGroup(ctx context.Context, group domain.Group) error
	GetGroup(ctx context.Context, id domain.GroupID) (domain.Group, error)
	GroupsByParticipant(ctx context.Context, id domain.UserID) ([]domain.Group, error)
	// DeleteGroup removes the group and, atomically, every payment recorded
	// against it. Policy checks happen before this is called.
	DeleteGroup(ctx context.Context, id domain.GroupID) error

	CreatePayment(ctx context.Context, payment domain.Payment) error
	GetPayment(ctx context.Context, id domain.PaymentID) (domain.Payment, error)
	DeletePayment(ctx context.Context, id domain.PaymentID) error
}
