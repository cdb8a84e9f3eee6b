// Package client is the typed gateway to the graph service. A Client is
// bound to one principal's bearer token and lives for one request; it holds
// no cross-request state. Every method maps to exactly one declared
// operation; there is no dynamic query construction.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"warikan/internal/domain"
	"warikan/internal/graph"
	"warikan/internal/platform/metrics"
	"warikan/pkg/domerr"
)

var tracer = otel.Tracer("warikan/graph/client")

// Gateway is what loaders depend on; tests substitute a counting fake.
type Gateway interface {
	GetGroupDetail(ctx context.Context, id domain.GroupID) (*graph.GroupDetail, error)
	GetGroupsByUser(ctx context.Context) ([]graph.GroupSummary, error)
	GetPayment(ctx context.Context, id domain.PaymentID) (*domain.Payment, error)
	CreateGroup(ctx context.Context, title string) (*graph.GroupDetail, error)
	CreatePayment(ctx context.Context, vars graph.CreatePaymentVars) (*domain.Payment, error)
	CreateUser(ctx context.Context, name string) (*domain.User, error)
	DeleteGroup(ctx context.Context, id domain.GroupID) (string, error)
	DeletePayment(ctx context.Context, id domain.PaymentID) (string, error)
	DeleteUser(ctx context.Context, id domain.UserID) (string, error)
}

// Client executes operations over HTTP.
type Client struct {
	endpoint string
	token    string
	timeout  time.Duration
	http     *http.Client
	metrics  *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-operation deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient substitutes the transport; tests use httptest clients.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMetrics records per-operation counters and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New binds a client to the endpoint and the principal's bearer token.
func New(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		token:    token,
		timeout:  10 * time.Second,
		http:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetGroupDetail(ctx context.Context, id domain.GroupID) (*graph.GroupDetail, error) {
	var detail *graph.GroupDetail
	if err := c.do(ctx, graph.OpGetGroup, graph.IDVars{ID: id.String()}, &detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *Client) GetGroupsByUser(ctx context.Context) ([]graph.GroupSummary, error) {
	var summaries []graph.GroupSummary
	if err := c.do(ctx, graph.OpGetGroupsByUser, struct{}{}, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *Client) GetPayment(ctx context.Context, id domain.PaymentID) (*domain.Payment, error) {
	var payment *domain.Payment
	if err := c.do(ctx, graph.OpGetPayment, graph.IDVars{ID: id.String()}, &payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (c *Client) CreateGroup(ctx context.Context, title string) (*graph.GroupDetail, error) {
	var detail *graph.GroupDetail
	if err := c.do(ctx, graph.OpCreateGroup, graph.CreateGroupVars{Title: title}, &detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *Client) CreatePayment(ctx context.Context, vars graph.CreatePaymentVars) (*domain.Payment, error) {
	var payment *domain.Payment
	if err := c.do(ctx, graph.OpCreatePayment, vars, &payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (c *Client) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	var user *domain.User
	if err := c.do(ctx, graph.OpCreateUser, graph.CreateUserVars{Name: name}, &user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) DeleteGroup(ctx context.Context, id domain.GroupID) (string, error) {
	return c.delete(ctx, graph.OpDeleteGroup, id.String())
}

func (c *Client) DeletePayment(ctx context.Context, id domain.PaymentID) (string, error) {
	return c.delete(ctx, graph.OpDeletePayment, id.String())
}

func (c *Client) DeleteUser(ctx context.Context, id domain.UserID) (string, error) {
	return c.delete(ctx, graph.OpDeleteUser, id.String())
}

func (c *Client) delete(ctx context.Context, operation, id string) (string, error) {
	var deleted graph.DeletedID
	if err := c.do(ctx, operation, graph.IDVars{ID: id}, &deleted); err != nil {
		return "", err
	}
	return deleted.ID, nil
}

// do executes one operation round trip. Transport failures, non-2xx
// statuses, and service-reported errors all surface as coded errors; an
// absent entity decodes into a nil pointer with no error.
func (c *Client) do(ctx context.Context, operation string, variables, into any) (err error) {
	if c.metrics != nil {
		c.metrics.GraphOperations.WithLabelValues(operation).Inc()
		timer := prometheus.NewTimer(c.metrics.GraphLatencySeconds.WithLabelValues(operation))
		defer func() {
			timer.ObserveDuration()
			if err != nil {
				c.metrics.GraphOperationErrors.WithLabelValues(operation, string(domerr.CodeOf(err))).Inc()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "graph."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graph.operation", operation)),
	)
	defer span.End()

	vars, err := json.Marshal(variables)
	if err != nil {
		return domerr.Wrap(domerr.CodeInternal, "encode variables", err)
	}
	body, err := json.Marshal(graph.Request{Operation: operation, Variables: vars})
	if err != nil {
		return domerr.Wrap(domerr.CodeInternal, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domerr.Wrap(domerr.CodeInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domerr.Wrap(domerr.CodeUnavailable, "graph service unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domerr.Wrap(domerr.CodeUnavailable, "read graph response", err)
	}

	var envelope graph.Response
	if err := json.Unmarshal(payload, &envelope); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domerr.Wrap(domerr.CodeUnavailable,
			fmt.Sprintf("malformed graph response (status %d)", resp.StatusCode), err)
	}

	if envelope.Error != nil {
		span.SetStatus(codes.Error, envelope.Error.Message)
		return domerr.New(domerr.Code(envelope.Error.Code), envelope.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return domerr.New(domerr.CodeUnavailable, "graph service returned "+resp.Status)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		// Absent entity; the typed pointer stays nil.
		return nil
	}
	if err := json.Unmarshal(envelope.Data, into); err != nil {
		return domerr.Wrap(domerr.CodeUnavailable, "decode graph data", err)
	}
	return nil
}
