package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"warikan/internal/auth"
	"warikan/internal/domain"
	"warikan/internal/graph"
	"warikan/internal/graph/client"
	"warikan/internal/platform/metrics"
	"warikan/internal/platform/middleware"
	"warikan/pkg/domerr"
)

// GatewayFactory binds a principal's bearer token into a fresh graph gateway.
// The gateway holds no cross-request state; every navigation gets its own.
type GatewayFactory func(token string) client.Gateway

// Handler owns the route tree of the application server.
type Handler struct {
	auth     *auth.Authenticator
	gateways GatewayFactory
	logger   *slog.Logger
	metrics  *metrics.Metrics

	loginPath string
	appPath   string
}

func NewHandler(authenticator *auth.Authenticator, gateways GatewayFactory, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		auth:      authenticator,
		gateways:  gateways,
		logger:    logger,
		metrics:   m,
		loginPath: "/login",
		appPath:   "/app",
	}
}

// Router builds the nested route tree. The loader chains mirror the URL
// nesting: everything under /app starts with the session gate, the group
// detail subtree starts with the aggregate fetch.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/", h.navigate("index", h.renderIndex, h.redirectAuthenticated))
	r.Get("/login", h.navigate("login", h.renderLogin, h.redirectAuthenticated))

	r.Post("/auth/login", h.handleLogin)
	r.Get("/auth/callback", h.handleCallback)
	r.Post("/auth/logout", h.handleLogout)

	r.Route("/app", func(r chi.Router) {
		r.Get("/", h.navigate("app", h.renderApp,
			h.requireSession))
		r.Get("/groups", h.navigate("groups", h.renderGroups,
			h.requireSession, h.loadGroups))
		r.Post("/groups", h.action("create_group", h.createGroup))
		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Get("/", h.navigate("group", h.renderGroup,
				h.requireSession, h.loadAggregate))
			r.Delete("/", h.action("delete_group", h.deleteGroup))
			r.Post("/payments", h.action("create_payment", h.createPayment))
			r.Get("/payments/{paymentID}", h.navigate("group_payment", h.renderPayment,
				h.requireSession, h.loadAggregate, h.lookupPayment))
		})
		r.Get("/payments/{paymentID}", h.navigate("payment", h.renderPayment,
			h.requireSession, h.loadPayment))
		r.Delete("/payments/{paymentID}", h.action("delete_payment", h.deletePayment))
	})

	return r
}

// navigate runs a loader chain parent-to-child and renders the view. The
// first redirect or error aborts the chain; no loader below it runs.
func (h *Handler) navigate(route string, render func(*NavContext) any, chain ...Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		h.metrics.Navigations.WithLabelValues(route).Inc()

		nav := &NavContext{}
		for _, loader := range chain {
			rd, err := loader(ctx, r, nav)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			if rd != nil {
				http.Redirect(w, r, rd.location, http.StatusFound)
				return
			}
		}
		h.writeJSON(w, http.StatusOK, render(nav))
	}
}

// action is the mutation counterpart of navigate: gate, then run the write
// against the gateway.
func (h *Handler) action(route string, run func(w http.ResponseWriter, r *http.Request, nav *NavContext)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.metrics.Navigations.WithLabelValues(route).Inc()

		nav := &NavContext{}
		rd, err := h.requireSession(r.Context(), r, nav)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if rd != nil {
			http.Redirect(w, r, rd.location, http.StatusFound)
			return
		}
		run(w, r, nav)
	}
}

func (h *Handler) renderIndex(*NavContext) any {
	return map[string]string{"login": h.loginPath}
}

func (h *Handler) renderLogin(*NavContext) any {
	return map[string]string{"action": "/auth/login"}
}

func (h *Handler) renderApp(nav *NavContext) any {
	return map[string]any{
		"user": userView{ID: nav.Principal.ID.String(), Name: nav.Principal.Name},
	}
}

func (h *Handler) renderGroups(nav *NavContext) any {
	views := make([]groupSummaryView, 0, len(nav.Groups))
	for _, g := range nav.Groups {
		views = append(views, toGroupSummaryView(g))
	}
	return map[string]any{"groups": views}
}

func (h *Handler) renderGroup(nav *NavContext) any {
	return toGroupView(*nav.Group)
}

func (h *Handler) renderPayment(nav *NavContext) any {
	return toPaymentView(*nav.Payment)
}

type createGroupForm struct {
	Title string `json:"title"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request, nav *NavContext) {
	var form createGroupForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.writeError(w, r, domerr.New(domerr.CodeInvalidArgument, "malformed request body"))
		return
	}
	detail, err := nav.Gateway().CreateGroup(r.Context(), form.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toGroupView(detail.Group()))
}

type createPaymentForm struct {
	Title    string   `json:"title"`
	Creditor string   `json:"creditor"`
	Debtors  []string `json:"debtors"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request, nav *NavContext) {
	var form createPaymentForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.writeError(w, r, domerr.New(domerr.CodeInvalidArgument, "malformed request body"))
		return
	}
	payment, err := nav.Gateway().CreatePayment(r.Context(), graph.CreatePaymentVars{
		Group:    chi.URLParam(r, "groupID"),
		Creditor: form.Creditor,
		Debtors:  form.Debtors,
		Title:    form.Title,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toPaymentView(*payment))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request, nav *NavContext) {
	id, err := nav.Gateway().DeleteGroup(r.Context(), groupIDParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request, nav *NavContext) {
	id, err := nav.Gateway().DeletePayment(r.Context(), paymentIDParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	location, err := h.auth.StartLogin(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	principal, err := h.auth.CompleteLogin(r.Context(), w, r)
	if err != nil {
		// A failed handshake sends the user back to the login page rather
		// than rendering an error body.
		h.logger.WarnContext(r.Context(), "login callback rejected", "error", err)
		http.Redirect(w, r, h.loginPath, http.StatusFound)
		return
	}
	h.logger.InfoContext(r.Context(), "login completed", "user", principal.ID)
	http.Redirect(w, r, h.appPath, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domerr.CodeOf(err)
	status := domerr.ToHTTPStatus(code)
	if status == http.StatusNotFound {
		h.metrics.LoaderNotFound.Inc()
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "navigation failed", "error", err, "path", r.URL.Path)
	}
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": publicMessage(err, code),
		},
	})
}

// publicMessage surfaces domain error messages but never internal ones.
func publicMessage(err error, code domerr.Code) string {
	if code == domerr.CodeInternal || code == domerr.CodeUnavailable {
		return "request failed"
	}
	var derr *domerr.Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return string(code)
}

func groupIDParam(r *http.Request) domain.GroupID {
	return domain.GroupID(chi.URLParam(r, "groupID"))
}

func paymentIDParam(r *http.Request) domain.PaymentID {
	return domain.PaymentID(chi.URLParam(r, "paymentID"))
}
