// Package memory is the in-memory store used by tests and single-node dev
// runs. Entities are normalized the same way the postgres schema lays them
// out: users, groups with participant IDs, payments with debtor IDs. Reads
// hydrate user snapshots so aggregates come back fully shaped.
package memory

import (
	"context"
	"fmt"
	"sync"

	"warikan/internal/domain"
	"warikan/pkg/sentinel"
)

type groupRow struct {
	group        domain.Group // Participants and Payments left empty
	participants []domain.UserID
}

type paymentRow struct {
	payment  domain.Payment // Creditor and Debtors left empty
	creditor domain.UserID
	debtors  []domain.UserID
}

// Store is a mutex-guarded map store.
type Store struct {
	mu       sync.RWMutex
	users    map[domain.UserID]domain.User
	groups   map[domain.GroupID]groupRow
	payments map[domain.PaymentID]paymentRow
}

func New() *Store {
	return &Store{
		users:    make(map[domain.UserID]domain.User),
		groups:   make(map[domain.GroupID]groupRow),
		payments: make(map[domain.PaymentID]paymentRow),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrConflict)
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	return user, nil
}

func (s *Store) DeleteUser(_ context.Context, id domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) UserReferences(_ context.Context, id domain.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, g := range s.groups {
		for _, pid := range g.participants {
			if pid == id {
				count++
				break
			}
		}
	}
	for _, p := range s.payments {
		if p.creditor == id {
			count++
			continue
		}
		for _, did := range p.debtors {
			if did == id {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *Store) CreateGroup(_ context.Context, group domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[group.ID]; exists {
		return fmt.Errorf("group %s: %w", group.ID, sentinel.ErrConflict)
	}
	row := groupRow{group: group}
	row.group.Participants = nil
	row.group.Payments = nil
	for _, u := range group.Participants {
		row.participants = append(row.participants, u.ID)
	}
	s.groups[group.ID] = row
	return nil
}

func (s *Store) GetGroup(_ context.Context, id domain.GroupID) (domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.groups[id]
	if !ok {
		return domain.Group{}, fmt.Errorf("group %s: %w", id, sentinel.ErrNotFound)
	}
	return s.hydrateGroup(row), nil
}

func (s *Store) GroupsByParticipant(_ context.Context, id domain.UserID) ([]domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := []domain.Group{}
	for _, row := range s.groups {
		for _, pid := range row.participants {
			if pid == id {
				groups = append(groups, s.hydrateGroup(row))
				break
			}
		}
	}
	return groups, nil
}

func (s *Store) DeleteGroup(_ context.Context, id domain.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("group %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.groups, id)
	for pid, row := range s.payments {
		if row.payment.GroupID == id {
			delete(s.payments, pid)
		}
	}
	return nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ID]; exists {
		return fmt.Errorf("payment %s: %w", payment.ID, sentinel.ErrConflict)
	}
	if _, ok := s.groups[payment.GroupID]; !ok {
		return fmt.Errorf("group %s: %w", payment.GroupID, sentinel.ErrNotFound)
	}
	row := paymentRow{payment: payment, creditor: payment.Creditor.ID}
	row.payment.Creditor = domain.User{}
	row.payment.Debtors = nil
	for _, d := range payment.Debtors {
		row.debtors = append(row.debtors, d.ID)
	}
	s.payments[payment.ID] = row
	return nil
}

func (s *Store) GetPayment(_ context.Context, id domain.PaymentID) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", id, sentinel.ErrNotFound)
	}
	return s.hydratePayment(row), nil
}

func (s *Store) DeletePayment(_ context.Context, id domain.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[id]; !ok {
		return fmt.Errorf("payment %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.payments, id)
	return nil
}

// hydrateGroup assembles the aggregate: participant snapshots plus every
// payment recorded against the group. Callers hold at least the read lock.
func (s *Store) hydrateGroup(row groupRow) domain.Group {
	group := row.group
	group.Participants = make([]domain.User, 0, len(row.participants))
	for _, pid := range row.participants {
		group.Participants = append(group.Participants, s.userSnapshot(pid))
	}
	group.Payments = []domain.Payment{}
	for _, p := range s.payments {
		if p.payment.GroupID == group.ID {
			group.Payments = append(group.Payments, s.hydratePayment(p))
		}
	}
	domain.SortPayments(group.Payments)
	return group
}

func (s *Store) hydratePayment(row paymentRow) domain.Payment {
	payment := row.payment
	payment.Creditor = s.userSnapshot(row.creditor)
	payment.Debtors = make([]domain.User, 0, len(row.debtors))
	for _, did := range row.debtors {
		payment.Debtors = append(payment.Debtors, s.userSnapshot(did))
	}
	return payment
}

// userSnapshot tolerates a missing user (deleted after the reference was
// written under the cascade policy) by degrading to an ID-only snapshot.
func (s *Store) userSnapshot(id domain.UserID) domain.User {
	if user, ok := s.users[id]; ok {
		return user
	}
	return domain.User{ID: id}
}
