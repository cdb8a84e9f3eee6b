package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warikan/internal/audit"
	"warikan/internal/domain"
	"warikan/internal/graph"
	"warikan/internal/graph/service"
	"warikan/internal/graph/store/memory"
	"warikan/internal/platform/config"
	"warikan/internal/platform/metrics"
	"warikan/pkg/domerr"
)

// fakeValidator accepts one token and maps it to a fixed caller.
type fakeValidator struct {
	token  string
	caller domain.UserID
}

func (f fakeValidator) ValidateToken(token string) (domain.UserID, error) {
	if token != f.token {
		return "", domerr.New(domerr.CodeUnauthenticated, "unknown token")
	}
	return f.caller, nil
}

type handlerFixture struct {
	router http.Handler
	caller domain.UserID
	token  string
	store  *memory.Store
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	svc := service.New(st, audit.NewMemoryStore(), logger, config.DeletePolicyCascade)
	caller := domain.NewUserID()
	h := New(svc, logger, metrics.New(), fakeValidator{token: "good-token", caller: caller})
	return &handlerFixture{
		router: h.Router(),
		caller: caller,
		token:  "good-token",
		store:  st,
	}
}

func (f *handlerFixture) execute(t *testing.T, token, operation string, variables any) *httptest.ResponseRecorder {
	t.Helper()
	vars, err := json.Marshal(variables)
	require.NoError(t, err)
	body, err := json.Marshal(graph.Request{Operation: operation, Variables: vars})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graph", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) graph.Response {
	t.Helper()
	var envelope graph.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestRequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	t.Run("missing token", func(t *testing.T) {
		rec := f.execute(t, "", graph.OpGetGroupsByUser, struct{}{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		rec := f.execute(t, "bad-token", graph.OpGetGroupsByUser, struct{}{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("healthz stays open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCreateAndFetchGroup(t *testing.T) {
	f := newFixture(t)

	rec := f.execute(t, f.token, graph.OpCreateGroup, graph.CreateGroupVars{Title: "Trip"})
	require.Equal(t, http.StatusOK, rec.Code)

	var created graph.GroupDetail
	envelope := decodeEnvelope(t, rec)
	require.Nil(t, envelope.Error)
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	assert.Equal(t, "Trip", created.Title)
	require.Len(t, created.Participants, 1)
	assert.Equal(t, f.caller, created.Participants[0].ID)

	rec = f.execute(t, f.token, graph.OpGetGroup, graph.IDVars{ID: created.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched graph.GroupDetail
	envelope = decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(envelope.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Empty(t, fetched.Payments)
}

func TestAbsentGroupRendersNullData(t *testing.T) {
	f := newFixture(t)

	rec := f.execute(t, f.token, graph.OpGetGroup, graph.IDVars{ID: domain.NewGroupID().String()})
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Nil(t, envelope.Error)
	assert.Equal(t, "null", string(envelope.Data))
}

func TestUnknownOperationRejected(t *testing.T) {
	f := newFixture(t)

	rec := f.execute(t, f.token, "dropAllTables", graph.IDVars{ID: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(domerr.CodeInvalidArgument), envelope.Error.Code)
}

func TestForbiddenGroupAccess(t *testing.T) {
	f := newFixture(t)

	// A group owned by someone else entirely.
	other := domain.User{ID: domain.NewUserID(), Name: "other"}
	require.NoError(t, f.store.CreateUser(context.Background(), other))
	group, err := domain.NewGroup("Private", other)
	require.NoError(t, err)
	require.NoError(t, f.store.CreateGroup(context.Background(), group))

	rec := f.execute(t, f.token, graph.OpGetGroup, graph.IDVars{ID: group.ID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(domerr.CodeForbidden), envelope.Error.Code)
}

func TestDeletePaymentRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.execute(t, f.token, graph.OpCreateGroup, graph.CreateGroupVars{Title: "Trip"})
	var created graph.GroupDetail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))

	rec = f.execute(t, f.token, graph.OpCreatePayment, graph.CreatePaymentVars{
		Group:    created.ID.String(),
		Creditor: f.caller.String(),
		Debtors:  []string{f.caller.String()},
		Title:    "Dinner",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var payment domain.Payment
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &payment))

	rec = f.execute(t, f.token, graph.OpDeletePayment, graph.IDVars{ID: payment.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted graph.DeletedID
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &deleted))
	assert.Equal(t, payment.ID.String(), deleted.ID)
}
