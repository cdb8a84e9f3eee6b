package domain

import (
	"sort"
	"time"

	"warikan/pkg/domerr"
)

// Group is a named collection of participating users sharing payments.
// Participants is the closed membership of the group; Payments is every
// payment recorded against it.
type Group struct {
	ID           GroupID   `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Title        string    `json:"title"`
	Participants []User    `json:"participants"`
	Payments     []Payment `json:"payments"`
}

// NewGroup builds a group with the creator as its first participant.
func NewGroup(title string, creator User) (Group, error) {
	if title == "" {
		return Group{}, domerr.New(domerr.CodeInvalidArgument, "group title must not be empty")
	}
	if creator.ID.IsNil() {
		return Group{}, domerr.New(domerr.CodeInvalidArgument, "group creator must have an id")
	}
	return Group{
		ID:           NewGroupID(),
		CreatedAt:    time.Now().UTC(),
		Title:        title,
		Participants: []User{creator},
		Payments:     []Payment{},
	}, nil
}

// HasParticipant reports whether the user belongs to the group.
func (g Group) HasParticipant(id UserID) bool {
	for _, u := range g.Participants {
		if u.ID == id {
			return true
		}
	}
	return false
}

// Payment looks up a payment by ID inside the already-loaded aggregate.
// The ok flag distinguishes "absent" from a zero payment so callers can
// translate a dangling ID into a not-found response.
func (g Group) Payment(id PaymentID) (Payment, bool) {
	for _, p := range g.Payments {
		if p.ID == id {
			return p, true
		}
	}
	return Payment{}, false
}

// CheckMembership returns the IDs of payments whose creditor or debtors fall
// outside the group's participants. The schema does not enforce this, so
// aggregates loaded from elsewhere are checked rather than trusted.
func (g Group) CheckMembership() []PaymentID {
	var violations []PaymentID
	for _, p := range g.Payments {
		if !g.HasParticipant(p.Creditor.ID) {
			violations = append(violations, p.ID)
			continue
		}
		for _, d := range p.Debtors {
			if !g.HasParticipant(d.ID) {
				violations = append(violations, p.ID)
				break
			}
		}
	}
	return violations
}

// SortGroups orders groups newest first. The sort is stable so equal
// timestamps keep their input order. Display policy, not a storage invariant.
func SortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
}
