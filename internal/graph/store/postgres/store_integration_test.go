//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"warikan/internal/domain"
	"warikan/internal/graph/store/postgres"
	"warikan/pkg/sentinel"
	"warikan/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *containers.PostgresContainer
	store     *postgres.Store
	ctx       context.Context

	alice domain.User
	bob   domain.User
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewPostgresContainer(s.T())

	store, err := postgres.New(s.ctx, s.container.URL)
	s.Require().NoError(err)
	s.Require().NoError(store.EnsureSchema(s.ctx))
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.alice = domain.User{ID: domain.NewUserID(), Name: "alice"}
	s.bob = domain.User{ID: domain.NewUserID(), Name: "bob"}
	s.Require().NoError(s.store.CreateUser(s.ctx, s.alice))
	s.Require().NoError(s.store.CreateUser(s.ctx, s.bob))
}

func (s *PostgresStoreSuite) newGroup(title string) domain.Group {
	group, err := domain.NewGroup(title, s.alice)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateGroup(s.ctx, group))
	return group
}

func (s *PostgresStoreSuite) TestUserRoundTrip() {
	got, err := s.store.GetUser(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal("alice", got.Name)

	s.Require().ErrorIs(s.store.CreateUser(s.ctx, s.alice), sentinel.ErrConflict)

	_, err = s.store.GetUser(s.ctx, domain.NewUserID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGroupAggregate() {
	group := s.newGroup("Trip")

	payment, err := domain.NewPayment(group.ID, "Dinner", s.alice, []domain.User{s.bob})
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePayment(s.ctx, payment))

	got, err := s.store.GetGroup(s.ctx, group.ID)
	s.Require().NoError(err)
	s.Equal("Trip", got.Title)
	s.Require().Len(got.Participants, 1)
	s.Require().Len(got.Payments, 1)
	s.Equal(payment.ID, got.Payments[0].ID)
	s.Equal(s.alice.ID, got.Payments[0].Creditor.ID)
	s.Require().Len(got.Payments[0].Debtors, 1)
	s.Equal(s.bob.ID, got.Payments[0].Debtors[0].ID)
}

func (s *PostgresStoreSuite) TestGroupsByParticipant() {
	first := s.newGroup("Trip")
	second := s.newGroup("House")

	groups, err := s.store.GroupsByParticipant(s.ctx, s.alice.ID)
	s.Require().NoError(err)

	ids := make([]domain.GroupID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	s.Subset(ids, []domain.GroupID{first.ID, second.ID})

	groups, err = s.store.GroupsByParticipant(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	for _, g := range groups {
		s.NotEqual(first.ID, g.ID)
		s.NotEqual(second.ID, g.ID)
	}
}

func (s *PostgresStoreSuite) TestDeleteGroupCascadesPayments() {
	group := s.newGroup("Trip")
	payment, err := domain.NewPayment(group.ID, "Dinner", s.alice, []domain.User{s.bob})
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePayment(s.ctx, payment))

	s.Require().NoError(s.store.DeleteGroup(s.ctx, group.ID))

	_, err = s.store.GetGroup(s.ctx, group.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetPayment(s.ctx, payment.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUserReferences() {
	group := s.newGroup("Trip")
	payment, err := domain.NewPayment(group.ID, "Dinner", s.alice, []domain.User{s.bob})
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePayment(s.ctx, payment))

	refs, err := s.store.UserReferences(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Positive(refs)
}
