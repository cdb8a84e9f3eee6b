package web

import (
	"time"

	"warikan/internal/domain"
	"warikan/internal/graph"
)

// View shapes rendered as JSON. These are display shapes, not the wire
// contract: lists arrive already sorted newest-first and stay that way.

type userView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupSummaryView struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Title        string    `json:"title"`
	Participants []string  `json:"participants"`
}

type groupView struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"createdAt"`
	Title        string        `json:"title"`
	Participants []userView    `json:"participants"`
	Payments     []paymentView `json:"payments"`
}

type paymentView struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Title     string     `json:"title"`
	Creditor  userView   `json:"creditor"`
	Debtors   []userView `json:"debtors"`
	Group     string     `json:"group"`
}

func toUserView(u domain.User) userView {
	return userView{ID: u.ID.String(), Name: u.Name}
}

func toUserViews(users []domain.User) []userView {
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return views
}

func toGroupSummaryView(s graph.GroupSummary) groupSummaryView {
	ids := make([]string, 0, len(s.Participants))
	for _, id := range s.Participants {
		ids = append(ids, id.String())
	}
	return groupSummaryView{
		ID:           s.ID.String(),
		CreatedAt:    s.CreatedAt,
		Title:        s.Title,
		Participants: ids,
	}
}

func toGroupView(g domain.Group) groupView {
	payments := make([]paymentView, 0, len(g.Payments))
	for _, p := range g.Payments {
		payments = append(payments, toPaymentView(p))
	}
	return groupView{
		ID:           g.ID.String(),
		CreatedAt:    g.CreatedAt,
		Title:        g.Title,
		Participants: toUserViews(g.Participants),
		Payments:     payments,
	}
}

func toPaymentView(p domain.Payment) paymentView {
	return paymentView{
		ID:        p.ID.String(),
		CreatedAt: p.CreatedAt,
		Title:     p.Title,
		Creditor:  toUserView(p.Creditor),
		Debtors:   toUserViews(p.Debtors),
		Group:     p.GroupID.String(),
	}
}
