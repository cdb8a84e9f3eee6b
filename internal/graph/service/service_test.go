package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"warikan/internal/audit"
	"warikan/internal/domain"
	"warikan/internal/graph/store/memory"
	"warikan/internal/platform/config"
	"warikan/pkg/domerr"
)

type ServiceSuite struct {
	suite.Suite
	svc    *Service
	store  *memory.Store
	outbox *audit.MemoryStore
	ctx    context.Context

	alice domain.UserID
	bob   domain.User
	carol domain.User
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.outbox = audit.NewMemoryStore()
	s.svc = New(s.store, s.outbox, discard(), config.DeletePolicyCascade)
	s.ctx = context.Background()

	s.alice = domain.NewUserID()
	s.bob = domain.User{ID: domain.NewUserID(), Name: "bob"}
	s.carol = domain.User{ID: domain.NewUserID(), Name: "carol"}
	s.Require().NoError(s.store.CreateUser(s.ctx, s.bob))
	s.Require().NoError(s.store.CreateUser(s.ctx, s.carol))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *ServiceSuite) TestCreateGroupThenGetGroup() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)

	got, err := s.svc.GetGroup(s.ctx, s.alice, group.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Trip", got.Title)
	s.Empty(got.Payments)
	s.Require().Len(got.Participants, 1)
	s.Equal(s.alice, got.Participants[0].ID)
}

func (s *ServiceSuite) TestCreatePaymentAppearsInAggregate() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)

	payment, err := s.svc.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
		s.alice, []domain.UserID{s.bob.ID, s.carol.ID})
	s.Require().NoError(err)

	got, err := s.svc.GetGroup(s.ctx, s.alice, group.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Require().Len(got.Payments, 1)

	p := got.Payments[0]
	s.Equal(payment.ID, p.ID)
	s.Equal(s.alice, p.Creditor.ID)
	debtorIDs := []domain.UserID{p.Debtors[0].ID, p.Debtors[1].ID}
	s.ElementsMatch(debtorIDs, []domain.UserID{s.bob.ID, s.carol.ID})
}

func (s *ServiceSuite) TestGetGroup() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)

	s.Run("absent group resolves to nil without error", func() {
		got, err := s.svc.GetGroup(s.ctx, s.alice, domain.NewGroupID())
		s.Require().NoError(err)
		s.Nil(got)
	})

	s.Run("non-participant is forbidden", func() {
		_, err := s.svc.GetGroup(s.ctx, s.bob.ID, group.ID)
		s.Require().Error(err)
		s.Equal(domerr.CodeForbidden, domerr.CodeOf(err))
	})
}

func (s *ServiceSuite) TestGetGroupsByUserSorted() {
	for _, title := range []string{"first", "second", "third"} {
		_, err := s.svc.CreateGroup(s.ctx, s.alice, title)
		s.Require().NoError(err)
	}

	groups, err := s.svc.GetGroupsByUser(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(groups, 3)
	for i := 1; i < len(groups); i++ {
		s.False(groups[i].CreatedAt.After(groups[i-1].CreatedAt))
	}
}

func (s *ServiceSuite) TestCreatePaymentValidation() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)

	s.Run("unknown group", func() {
		_, err := s.svc.CreatePayment(s.ctx, s.alice, domain.NewGroupID(), "Dinner",
			s.alice, []domain.UserID{s.bob.ID})
		s.Require().Error(err)
		s.Equal(domerr.CodeInvalidArgument, domerr.CodeOf(err))
	})

	s.Run("caller outside the group", func() {
		_, err := s.svc.CreatePayment(s.ctx, s.bob.ID, group.ID, "Dinner",
			s.bob.ID, []domain.UserID{s.carol.ID})
		s.Require().Error(err)
		s.Equal(domerr.CodeForbidden, domerr.CodeOf(err))
	})

	s.Run("unknown debtor", func() {
		_, err := s.svc.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
			s.alice, []domain.UserID{domain.NewUserID()})
		s.Require().Error(err)
		s.Equal(domerr.CodeInvalidArgument, domerr.CodeOf(err))
	})

	s.Run("no debtors", func() {
		_, err := s.svc.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
			s.alice, nil)
		s.Require().Error(err)
		s.Equal(domerr.CodeInvalidArgument, domerr.CodeOf(err))
	})
}

func (s *ServiceSuite) TestGetPaymentVisibility() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)
	payment, err := s.svc.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
		s.alice, []domain.UserID{s.bob.ID})
	s.Require().NoError(err)

	s.Run("participant sees the payment", func() {
		got, err := s.svc.GetPayment(s.ctx, s.alice, payment.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(payment.ID, got.ID)
	})

	s.Run("non-participant is forbidden", func() {
		_, err := s.svc.GetPayment(s.ctx, s.carol.ID, payment.ID)
		s.Require().Error(err)
		s.Equal(domerr.CodeForbidden, domerr.CodeOf(err))
	})

	s.Run("absent payment resolves to nil", func() {
		got, err := s.svc.GetPayment(s.ctx, s.alice, domain.NewPaymentID())
		s.Require().NoError(err)
		s.Nil(got)
	})
}

func (s *ServiceSuite) TestDeleteGroupCascade() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)
	payment, err := s.svc.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
		s.alice, []domain.UserID{s.bob.ID})
	s.Require().NoError(err)

	deleted, err := s.svc.DeleteGroup(s.ctx, s.alice, group.ID)
	s.Require().NoError(err)
	s.Equal(group.ID, deleted)

	got, err := s.svc.GetGroup(s.ctx, s.alice, group.ID)
	s.Require().NoError(err)
	s.Nil(got)

	// Cascade took the payment with the group.
	gotPayment, err := s.svc.GetPayment(s.ctx, s.alice, payment.ID)
	s.Require().NoError(err)
	s.Nil(gotPayment)
}

func (s *ServiceSuite) TestDeleteRestrictPolicy() {
	restricted := New(s.store, s.outbox, discard(), config.DeletePolicyRestrict)

	group, err := restricted.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)
	_, err = restricted.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
		s.alice, []domain.UserID{s.bob.ID})
	s.Require().NoError(err)

	s.Run("group with payments is refused", func() {
		_, err := restricted.DeleteGroup(s.ctx, s.alice, group.ID)
		s.Require().Error(err)
		s.Equal(domerr.CodeConflict, domerr.CodeOf(err))
	})

	s.Run("referenced user is refused", func() {
		_, err := restricted.DeleteUser(s.ctx, s.bob.ID, s.bob.ID)
		s.Require().Error(err)
		s.Equal(domerr.CodeConflict, domerr.CodeOf(err))
	})
}

func (s *ServiceSuite) TestDeleteUser() {
	s.Run("self-deletion succeeds", func() {
		_, err := s.svc.DeleteUser(s.ctx, s.carol.ID, s.carol.ID)
		s.Require().NoError(err)
	})

	s.Run("deleting someone else is forbidden", func() {
		_, err := s.svc.DeleteUser(s.ctx, s.alice, s.bob.ID)
		s.Require().Error(err)
		s.Equal(domerr.CodeForbidden, domerr.CodeOf(err))
	})
}

func (s *ServiceSuite) TestMutationsAudited() {
	group, err := s.svc.CreateGroup(s.ctx, s.alice, "Trip")
	s.Require().NoError(err)
	_, err = s.svc.CreatePayment(s.ctx, s.alice, group.ID, "Dinner",
		s.alice, []domain.UserID{s.bob.ID})
	s.Require().NoError(err)

	events := s.outbox.All()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionGroupCreated, events[0].Action)
	s.Equal(audit.ActionPaymentCreated, events[1].Action)
	s.Equal(s.alice, events[0].Actor)
	s.Equal(group.ID.String(), events[0].Subject)
}
