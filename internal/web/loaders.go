package web

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"warikan/internal/auth"
	"warikan/internal/domain"
	"warikan/pkg/domerr"
)

// requireSession gates the chain. Unauthenticated navigations redirect to the
// login page before any gateway exists, so no graph call can ever precede the
// gate. On success the principal's token is bound into a fresh gateway for
// the rest of the chain.
func (h *Handler) requireSession(_ context.Context, r *http.Request, nav *NavContext) (*redirect, error) {
	principal, rd, err := h.auth.IsAuthenticated(r, auth.Options{FailureRedirect: h.loginPath})
	if err != nil {
		return nil, err
	}
	if rd != nil {
		h.metrics.AuthRedirects.Inc()
		return redirectTo(rd.Location)
	}
	nav.Principal = principal
	nav.gateway = h.gateways(principal.Token)
	return nil, nil
}

// redirectAuthenticated is the gate flavor for logged-out-only pages: a valid
// session bounces straight into the app.
func (h *Handler) redirectAuthenticated(_ context.Context, r *http.Request, nav *NavContext) (*redirect, error) {
	_, rd, err := h.auth.IsAuthenticated(r, auth.Options{SuccessRedirect: h.appPath})
	if err != nil {
		return nil, err
	}
	if rd != nil {
		return redirectTo(rd.Location)
	}
	return nil, nil
}

func (h *Handler) loadGroups(ctx context.Context, _ *http.Request, nav *NavContext) (*redirect, error) {
	groups, err := nav.gateway.GetGroupsByUser(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
	nav.Groups = groups
	return nil, nil
}

// loadAggregate is the root segment of the group subtree: one round trip for
// the whole object graph. Descendant segments read nav.Group instead of
// fetching.
func (h *Handler) loadAggregate(ctx context.Context, r *http.Request, nav *NavContext) (*redirect, error) {
	id := domain.GroupID(chi.URLParam(r, "groupID"))
	detail, err := nav.gateway.GetGroupDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, domerr.New(domerr.CodeNotFound, "group not found")
	}
	group := detail.Group()
	nav.Group = &group
	return nil, nil
}

// lookupPayment resolves the payment segment against the ancestor aggregate.
// No network fetch happens here; a payment id the aggregate does not contain
// is a not-found navigation.
func (h *Handler) lookupPayment(_ context.Context, r *http.Request, nav *NavContext) (*redirect, error) {
	id := domain.PaymentID(chi.URLParam(r, "paymentID"))
	payment, ok := nav.Group.Payment(id)
	if !ok {
		return nil, domerr.New(domerr.CodeNotFound, "payment not in group")
	}
	nav.Payment = &payment
	return nil, nil
}

// loadPayment is the standalone flavor, for routes with no group ancestor in
// scope.
func (h *Handler) loadPayment(ctx context.Context, r *http.Request, nav *NavContext) (*redirect, error) {
	id := domain.PaymentID(chi.URLParam(r, "paymentID"))
	payment, err := nav.gateway.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domerr.New(domerr.CodeNotFound, "payment not found")
	}
	nav.Payment = payment
	return nil, nil
}
