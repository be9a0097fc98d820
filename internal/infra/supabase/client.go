// Package supabase provides a client for Supabase (PostgREST).
// It is the production implementation of port.DataStore for the quote engine.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/resilience"
	"github.com/boddenberg/orcamento-engine-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

var _ port.DataStore = (*Client)(nil)

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST answer.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// doRequest executes an authenticated request to Supabase PostgREST.
// 4xx answers are marked permanent so they are not retried.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, prefer string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		serr := &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(serr)
		}
		return nil, serr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return respBody, nil
}

// execute runs fn behind the circuit breaker with retries and normalizes
// the resulting error.
func (c *Client) execute(ctx context.Context, entity domain.Entity, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
	if err == nil {
		return nil
	}
	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	return &domain.ErrExternalService{Service: "supabase/" + string(entity), Err: err}
}

// ============================================================
// port.DataStore
// ============================================================

// Get fetches one row by primary key.
func (c *Client) Get(ctx context.Context, entity domain.Entity, id string, dst any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Get")
	defer span.End()
	span.SetAttributes(attribute.String("entity", string(entity)), attribute.String("id", id))

	var rows []json.RawMessage
	err := c.execute(ctx, entity, func() error {
		path := fmt.Sprintf("%s?id=eq.%s&limit=1", entity, url.QueryEscape(id))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return err
		}
		rows = nil
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s: %w", entity, err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: string(entity), ID: id}
	}
	if err := json.Unmarshal(rows[0], dst); err != nil {
		return fmt.Errorf("decode %s: %w", entity, err)
	}
	return nil
}

// List fetches the rows matching filter into dst (a pointer to a slice).
func (c *Client) List(ctx context.Context, entity domain.Entity, filter port.Filter, dst any) error {
	ctx, span := tracer.Start(ctx, "Supabase.List")
	defer span.End()
	span.SetAttributes(attribute.String("entity", string(entity)))

	path := string(entity) + "?" + buildQuery(filter)
	var body []byte
	err := c.execute(ctx, entity, func() error {
		b, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		body = b
		return err
	})
	if err != nil {
		return err
	}
	if len(body) == 0 {
		body = []byte("[]")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s: %w", entity, err)
	}
	return nil
}

// Insert creates a row and, when dst is non-nil, decodes the stored representation.
func (c *Client) Insert(ctx context.Context, entity domain.Entity, record map[string]any, dst any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("entity", string(entity)))

	var body []byte
	err := c.execute(ctx, entity, func() error {
		b, err := c.doPost(ctx, string(entity), record)
		body = b
		return err
	})
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode %s: %w", entity, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no result from %s insert", entity)
	}
	return json.Unmarshal(rows[0], dst)
}

// Update patches the row with the given id.
func (c *Client) Update(ctx context.Context, entity domain.Entity, id string, patch map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("entity", string(entity)), attribute.String("id", id))

	return c.execute(ctx, entity, func() error {
		return c.doPatch(ctx, fmt.Sprintf("%s?id=eq.%s", entity, url.QueryEscape(id)), patch)
	})
}

// Delete removes the row with the given id.
func (c *Client) Delete(ctx context.Context, entity domain.Entity, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("entity", string(entity)), attribute.String("id", id))

	return c.execute(ctx, entity, func() error {
		return c.doDelete(ctx, fmt.Sprintf("%s?id=eq.%s", entity, url.QueryEscape(id)))
	})
}

// Ping checks that PostgREST answers; used by /healthz.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doRequest(ctx, http.MethodGet, string(domain.EntityPaymentOption)+"?select=id&limit=1", nil, "")
	return err
}

func buildQuery(f port.Filter) string {
	q := url.Values{}
	for col, v := range f.Eq {
		q.Set(col, "eq."+v)
	}
	if f.Order != "" {
		q.Set("order", f.Order)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q.Encode()
}
