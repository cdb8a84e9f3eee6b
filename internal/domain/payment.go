package domain

import (
	"sort"
	"time"

	"warikan/pkg/domerr"
)

// Payment records that one user (the creditor) paid on behalf of a set of
// users (the debtors) within a group. The owning group is referenced by ID
// only; Group.Payments holds the other direction of the association, so a
// mutual owning pointer pair never exists.
type Payment struct {
	ID        PaymentID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Title     string    `json:"title"`
	Creditor  User      `json:"creditor"`
	Debtors   []User    `json:"debtors"`
	GroupID   GroupID   `json:"group"`
}

// NewPayment validates and builds a payment. A payment with no debtors is
// meaningless and rejected here even though the wire schema cannot express
// the constraint. The creditor may also appear among the debtors.
func NewPayment(group GroupID, title string, creditor User, debtors []User) (Payment, error) {
	if group.IsNil() {
		return Payment{}, domerr.New(domerr.CodeInvalidArgument, "payment requires a group id")
	}
	if title == "" {
		return Payment{}, domerr.New(domerr.CodeInvalidArgument, "payment title must not be empty")
	}
	if creditor.ID.IsNil() {
		return Payment{}, domerr.New(domerr.CodeInvalidArgument, "payment requires a creditor")
	}
	if len(debtors) == 0 {
		return Payment{}, domerr.New(domerr.CodeInvalidArgument, "payment requires at least one debtor")
	}
	seen := make(map[UserID]struct{}, len(debtors))
	for _, d := range debtors {
		if d.ID.IsNil() {
			return Payment{}, domerr.New(domerr.CodeInvalidArgument, "debtor without an id")
		}
		if _, dup := seen[d.ID]; dup {
			return Payment{}, domerr.New(domerr.CodeInvalidArgument, "duplicate debtor "+d.ID.String())
		}
		seen[d.ID] = struct{}{}
	}
	return Payment{
		ID:        NewPaymentID(),
		CreatedAt: time.Now().UTC(),
		Title:     title,
		Creditor:  creditor,
		Debtors:   debtors,
		GroupID:   group,
	}, nil
}

// SortPayments orders payments newest first, stable.
func SortPayments(payments []Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
}
