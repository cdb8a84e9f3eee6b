// Package service executes the graph operation catalogue. Every operation
// runs on behalf of an authenticated caller; group data is only visible to
// its participants.
package service

import (
	"context"
	"errors"
	"log/slog"

	"warikan/internal/audit"
	"warikan/internal/domain"
	"warikan/internal/graph/store"
	"warikan/internal/platform/config"
	"warikan/pkg/domerr"
	"warikan/pkg/requestcontext"
	"warikan/pkg/sentinel"
)

// Auditor records one event per mutation. Fail-closed: an error here fails
// the mutation.
type Auditor interface {
	Append(ctx context.Context, event audit.Event) error
}

// Service holds the business rules of the ledger.
type Service struct {
	store   store.Store
	auditor Auditor
	logger  *slog.Logger
	policy  config.DeletePolicy
}

func New(st store.Store, auditor Auditor, logger *slog.Logger, policy config.DeletePolicy) *Service {
	return &Service{
		store:   st,
		auditor: auditor,
		logger:  logger,
		policy:  policy,
	}
}

// GetGroup resolves the group aggregate. Absence is a nil result, not an
// error, so the transport can answer "null" and a write failure stays
// distinguishable. A group the caller does not participate in is forbidden,
// never silently absent, mirroring the membership gate on every other
// group-scoped operation.
func (s *Service) GetGroup(ctx context.Context, caller domain.UserID, id domain.GroupID) (*domain.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !group.HasParticipant(caller) {
		return nil, domerr.New(domerr.CodeForbidden, "caller is not a participant of this group")
	}
	if violations := group.CheckMembership(); len(violations) > 0 {
		s.logger.WarnContext(ctx, "group aggregate has payments referencing non-participants",
			"group", group.ID,
			"payments", violations,
		)
	}
	return &group, nil
}

// GetGroupsByUser lists the caller's groups, newest first.
func (s *Service) GetGroupsByUser(ctx context.Context, caller domain.UserID) ([]domain.Group, error) {
	groups, err := s.store.GroupsByParticipant(ctx, caller)
	if err != nil {
		return nil, err
	}
	domain.SortGroups(groups)
	return groups, nil
}

// GetPayment resolves a single payment. Visibility follows the owning group.
func (s *Service) GetPayment(ctx context.Context, caller domain.UserID, id domain.PaymentID) (*domain.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, caller, payment.GroupID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreateGroup creates a group with the caller as its first participant. A
// user row for the caller is created on first write since identities are
// minted by the provider, not by createUser.
func (s *Service) CreateGroup(ctx context.Context, caller domain.UserID, title string) (domain.Group, error) {
	creator, err := s.ensureUser(ctx, caller)
	if err != nil {
		return domain.Group{}, err
	}
	group, err := domain.NewGroup(title, creator)
	if err != nil {
		return domain.Group{}, err
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return domain.Group{}, err
	}
	if err := s.audit(ctx, audit.ActionGroupCreated, caller, group.ID.String()); err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

// CreatePayment records a payment in a group the caller participates in.
// The creditor and every debtor must be known users. Referencing users
// outside the group's participants is flagged but not refused: the contract
// has no join operation, so refusing would make such payments unrecordable.
func (s *Service) CreatePayment(ctx context.Context, caller domain.UserID, groupID domain.GroupID, title string, creditorID domain.UserID, debtorIDs []domain.UserID) (domain.Payment, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.Payment{}, domerr.New(domerr.CodeInvalidArgument, "group does not exist")
	}
	if err != nil {
		return domain.Payment{}, err
	}
	if !group.HasParticipant(caller) {
		return domain.Payment{}, domerr.New(domerr.CodeForbidden, "caller is not a participant of this group")
	}

	creditor, err := s.lookupUser(ctx, creditorID, "creditor")
	if err != nil {
		return domain.Payment{}, err
	}
	debtors := make([]domain.User, 0, len(debtorIDs))
	for _, id := range debtorIDs {
		debtor, err := s.lookupUser(ctx, id, "debtor")
		if err != nil {
			return domain.Payment{}, err
		}
		debtors = append(debtors, debtor)
	}

	payment, err := domain.NewPayment(groupID, title, creditor, debtors)
	if err != nil {
		return domain.Payment{}, err
	}

	if outside := outsideParticipants(group, payment); len(outside) > 0 {
		s.logger.WarnContext(ctx, "payment references users outside the group's participants",
			"group", groupID,
			"payment", payment.ID,
			"users", outside,
		)
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return domain.Payment{}, err
	}
	if err := s.audit(ctx, audit.ActionPaymentCreated, caller, payment.ID.String()); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// CreateUser registers a user by name, minting a fresh ID.
func (s *Service) CreateUser(ctx context.Context, caller domain.UserID, name string) (domain.User, error) {
	if name == "" {
		return domain.User{}, domerr.New(domerr.CodeInvalidArgument, "user name must not be empty")
	}
	user := domain.User{ID: domain.NewUserID(), Name: name}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	if err := s.audit(ctx, audit.ActionUserCreated, caller, user.ID.String()); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteGroup removes a group the caller participates in. Under the cascade
// policy the group's payments go with it; under restrict a group with
// payments is refused.
func (s *Service) DeleteGroup(ctx context.Context, caller domain.UserID, id domain.GroupID) (domain.GroupID, error) {
	group, err := s.store.GetGroup(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", domerr.New(domerr.CodeNotFound, "group does not exist")
	}
	if err != nil {
		return "", err
	}
	if !group.HasParticipant(caller) {
		return "", domerr.New(domerr.CodeForbidden, "caller is not a participant of this group")
	}
	if s.policy == config.DeletePolicyRestrict && len(group.Payments) > 0 {
		return "", domerr.New(domerr.CodeConflict, "group still has payments recorded against it")
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return "", err
	}
	if err := s.audit(ctx, audit.ActionGroupDeleted, caller, id.String()); err != nil {
		return "", err
	}
	return id, nil
}

// DeletePayment removes a payment from a group the caller participates in.
func (s *Service) DeletePayment(ctx context.Context, caller domain.UserID, id domain.PaymentID) (domain.PaymentID, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", domerr.New(domerr.CodeNotFound, "payment does not exist")
	}
	if err != nil {
		return "", err
	}
	if err := s.requireParticipant(ctx, caller, payment.GroupID); err != nil {
		return "", err
	}
	if err := s.store.DeletePayment(ctx, id); err != nil {
		return "", err
	}
	if err := s.audit(ctx, audit.ActionPaymentDeleted, caller, id.String()); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteUser removes a user. Only self-deletion is allowed, and under the
// restrict policy a user still referenced by groups or payments is refused.
// Under cascade the references remain as ID-only snapshots.
func (s *Service) DeleteUser(ctx context.Context, caller domain.UserID, id domain.UserID) (domain.UserID, error) {
	if caller != id {
		return "", domerr.New(domerr.CodeForbidden, "users can only delete themselves")
	}
	if s.policy == config.DeletePolicyRestrict {
		refs, err := s.store.UserReferences(ctx, id)
		if err != nil {
			return "", err
		}
		if refs > 0 {
			return "", domerr.New(domerr.CodeConflict, "user is still referenced by groups or payments")
		}
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", domerr.New(domerr.CodeNotFound, "user does not exist")
		}
		return "", err
	}
	if err := s.audit(ctx, audit.ActionUserDeleted, caller, id.String()); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) requireParticipant(ctx context.Context, caller domain.UserID, groupID domain.GroupID) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// The owning group is gone; treat the payment as invisible.
		return domerr.New(domerr.CodeNotFound, "owning group does not exist")
	}
	if err != nil {
		return err
	}
	if !group.HasParticipant(caller) {
		return domerr.New(domerr.CodeForbidden, "caller is not a participant of this group")
	}
	return nil
}

// ensureUser resolves the caller's user row, creating an ID-only row on
// first write.
func (s *Service) ensureUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return domain.User{}, err
	}
	user = domain.User{ID: id, Name: id.String()}
	if err := s.store.CreateUser(ctx, user); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) lookupUser(ctx context.Context, id domain.UserID, role string) (domain.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.User{}, domerr.New(domerr.CodeInvalidArgument, role+" "+id.String()+" does not exist")
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) audit(ctx context.Context, action audit.Action, actor domain.UserID, subject string) error {
	event := audit.NewEvent(action, actor, subject, requestcontext.RequestID(ctx))
	if err := s.auditor.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed, failing mutation",
			"action", action,
			"subject", subject,
			"error", err,
		)
		return domerr.Wrap(domerr.CodeInternal, "audit record could not be written", err)
	}
	return nil
}

func outsideParticipants(group domain.Group, payment domain.Payment) []domain.UserID {
	var outside []domain.UserID
	if !group.HasParticipant(payment.Creditor.ID) {
		outside = append(outside, payment.Creditor.ID)
	}
	for _, d := range payment.Debtors {
		if !group.HasParticipant(d.ID) {
			outside = append(outside, d.ID)
		}
	}
	return outside
}
