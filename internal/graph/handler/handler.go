// Package handler is the HTTP edge of the graph service: one execution
// endpoint dispatching the fixed operation catalogue.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"warikan/internal/domain"
	"warikan/internal/graph"
	"warikan/internal/graph/service"
	"warikan/internal/platform/metrics"
	"warikan/internal/platform/middleware"
	"warikan/pkg/domerr"
)

// Handler dispatches graph operations to the service.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	auth    middleware.TokenValidator
}

func New(svc *service.Service, logger *slog.Logger, m *metrics.Metrics, auth middleware.TokenValidator) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
		metrics: m,
		auth:    auth,
	}
}

// Router builds the service's route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.auth, h.logger))
		r.Post("/graph", h.handleExecute)
	})

	return r
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.Caller(ctx)

	var req graph.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, req.Operation, domerr.New(domerr.CodeInvalidArgument, "malformed request envelope"))
		return
	}

	start := time.Now()
	h.metrics.GraphOperations.WithLabelValues(req.Operation).Inc()
	defer func() {
		h.metrics.GraphLatencySeconds.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
	}()

	data, err := h.dispatch(r, caller, req)
	if err != nil {
		h.metrics.GraphOperationErrors.WithLabelValues(req.Operation, string(domerr.CodeOf(err))).Inc()
		h.writeError(w, req.Operation, err)
		return
	}
	h.writeData(w, data)
}

// dispatch routes one envelope to its operation. Unknown operation names are
// invalid arguments: the catalogue is closed.
func (h *Handler) dispatch(r *http.Request, caller domain.UserID, req graph.Request) (any, error) {
	ctx := r.Context()

	switch req.Operation {
	case graph.OpGetGroup:
		var vars graph.IDVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		group, err := h.service.GetGroup(ctx, caller, domain.GroupID(vars.ID))
		if err != nil || group == nil {
			return nil, err
		}
		detail := toGroupDetail(*group)
		return &detail, nil

	case graph.OpGetGroupsByUser:
		groups, err := h.service.GetGroupsByUser(ctx, caller)
		if err != nil {
			return nil, err
		}
		summaries := make([]graph.GroupSummary, 0, len(groups))
		for _, g := range groups {
			summaries = append(summaries, toGroupSummary(g))
		}
		return summaries, nil

	case graph.OpGetPayment:
		var vars graph.IDVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		payment, err := h.service.GetPayment(ctx, caller, domain.PaymentID(vars.ID))
		if err != nil || payment == nil {
			return nil, err
		}
		return payment, nil

	case graph.OpCreateGroup:
		var vars graph.CreateGroupVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		group, err := h.service.CreateGroup(ctx, caller, vars.Title)
		if err != nil {
			return nil, err
		}
		detail := toGroupDetail(group)
		return &detail, nil

	case graph.OpCreatePayment:
		var vars graph.CreatePaymentVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		debtors := make([]domain.UserID, len(vars.Debtors))
		for i, d := range vars.Debtors {
			debtors[i] = domain.UserID(d)
		}
		return h.service.CreatePayment(ctx, caller,
			domain.GroupID(vars.Group), vars.Title, domain.UserID(vars.Creditor), debtors)

	case graph.OpCreateUser:
		var vars graph.CreateUserVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		return h.service.CreateUser(ctx, caller, vars.Name)

	case graph.OpDeleteGroup:
		var vars graph.IDVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		id, err := h.service.DeleteGroup(ctx, caller, domain.GroupID(vars.ID))
		if err != nil {
			return nil, err
		}
		return graph.DeletedID{ID: id.String()}, nil

	case graph.OpDeletePayment:
		var vars graph.IDVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		id, err := h.service.DeletePayment(ctx, caller, domain.PaymentID(vars.ID))
		if err != nil {
			return nil, err
		}
		return graph.DeletedID{ID: id.String()}, nil

	case graph.OpDeleteUser:
		var vars graph.IDVars
		if err := decodeVars(req, &vars); err != nil {
			return nil, err
		}
		id, err := h.service.DeleteUser(ctx, caller, domain.UserID(vars.ID))
		if err != nil {
			return nil, err
		}
		return graph.DeletedID{ID: id.String()}, nil
	}

	return nil, domerr.New(domerr.CodeInvalidArgument, "unknown operation "+req.Operation)
}

func decodeVars(req graph.Request, into any) error {
	if len(req.Variables) == 0 {
		return domerr.New(domerr.CodeInvalidArgument, "missing variables for "+req.Operation)
	}
	if err := json.Unmarshal(req.Variables, into); err != nil {
		return domerr.New(domerr.CodeInvalidArgument, "malformed variables for "+req.Operation)
	}
	return nil
}

// writeData renders {"data": ...}. A nil pointer renders data:null, the
// absent-entity shape.
func (h *Handler) writeData(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.writeError(w, "", domerr.Wrap(domerr.CodeInternal, "encode response", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(graph.Response{Data: body})
}

func (h *Handler) writeError(w http.ResponseWriter, operation string, err error) {
	code := domerr.CodeOf(err)
	message := err.Error()
	if code == domerr.CodeInternal {
		// Internal details stay in the log.
		message = "internal error"
		h.logger.Error("operation failed", "operation", operation, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(domerr.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(graph.Response{
		Error: &graph.ResponseError{Code: string(code), Message: message},
	})
}

func toGroupDetail(g domain.Group) graph.GroupDetail {
	return graph.GroupDetail{
		ID:           g.ID,
		CreatedAt:    g.CreatedAt,
		Title:        g.Title,
		Participants: g.Participants,
		Payments:     g.Payments,
	}
}

func toGroupSummary(g domain.Group) graph.GroupSummary {
	ids := make([]domain.UserID, 0, len(g.Participants))
	for _, u := range g.Participants {
		ids = append(ids, u.ID)
	}
	return graph.GroupSummary{
		ID:           g.ID,
		CreatedAt:    g.CreatedAt,
		Title:        g.Title,
		Participants: ids,
	}
}
