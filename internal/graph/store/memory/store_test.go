package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"warikan/internal/domain"
	"warikan/pkg/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context

	alice domain.User
	bob   domain.User
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.alice = domain.User{ID: domain.NewUserID(), Name: "alice"}
	s.bob = domain.User{ID: domain.NewUserID(), Name: "bob"}
	s.Require().NoError(s.store.CreateUser(s.ctx, s.alice))
	s.Require().NoError(s.store.CreateUser(s.ctx, s.bob))
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newGroup(title string) domain.Group {
	group, err := domain.NewGroup(title, s.alice)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateGroup(s.ctx, group))
	return group
}

func (s *MemoryStoreSuite) newPayment(group domain.Group) domain.Payment {
	payment, err := domain.NewPayment(group.ID, "Dinner", s.alice, []domain.User{s.bob})
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePayment(s.ctx, payment))
	return payment
}

func (s *MemoryStoreSuite) TestUsers() {
	s.Run("duplicate user is a conflict", func() {
		s.Require().ErrorIs(s.store.CreateUser(s.ctx, s.alice), sentinel.ErrConflict)
	})

	s.Run("unknown user is not found", func() {
		_, err := s.store.GetUser(s.ctx, domain.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestGroupAggregateHydration() {
	group := s.newGroup("Trip")
	payment := s.newPayment(group)

	got, err := s.store.GetGroup(s.ctx, group.ID)
	s.Require().NoError(err)

	s.Require().Len(got.Participants, 1)
	s.Equal("alice", got.Participants[0].Name)

	s.Require().Len(got.Payments, 1)
	s.Equal(payment.ID, got.Payments[0].ID)
	s.Equal("alice", got.Payments[0].Creditor.Name)
	s.Require().Len(got.Payments[0].Debtors, 1)
	s.Equal("bob", got.Payments[0].Debtors[0].Name)
}

func (s *MemoryStoreSuite) TestGroupsByParticipant() {
	s.newGroup("Trip")
	s.newGroup("House")

	theirs, err := domain.NewGroup("Other", s.bob)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateGroup(s.ctx, theirs))

	groups, err := s.store.GroupsByParticipant(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Len(groups, 2)
}

func (s *MemoryStoreSuite) TestDeleteGroupCascadesPayments() {
	group := s.newGroup("Trip")
	payment := s.newPayment(group)

	s.Require().NoError(s.store.DeleteGroup(s.ctx, group.ID))

	_, err := s.store.GetPayment(s.ctx, payment.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestPaymentRequiresExistingGroup() {
	payment, err := domain.NewPayment(domain.NewGroupID(), "Dinner", s.alice, []domain.User{s.bob})
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.CreatePayment(s.ctx, payment), sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDeletedUserDegradesToIDSnapshot() {
	group := s.newGroup("Trip")
	payment := s.newPayment(group)

	s.Require().NoError(s.store.DeleteUser(s.ctx, s.bob.ID))

	got, err := s.store.GetPayment(s.ctx, payment.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Debtors, 1)
	s.Equal(s.bob.ID, got.Debtors[0].ID)
	s.Empty(got.Debtors[0].Name)
}

func (s *MemoryStoreSuite) TestUserReferences() {
	group := s.newGroup("Trip")
	s.newPayment(group)

	refs, err := s.store.UserReferences(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(1, refs) // debtor in one payment, participant nowhere

	refs, err = s.store.UserReferences(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(2, refs) // group participant and payment creditor
}
