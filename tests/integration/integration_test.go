package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/handler"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/cache"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/client"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/memstore"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/resilience"
	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type emailAPI struct {
	mu       sync.Mutex
	received []map[string]any
	status   int
}

func (e *emailAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg map[string]any
	json.NewDecoder(r.Body).Decode(&msg)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.received = append(e.received, msg)
	w.WriteHeader(e.status)
}

func (e *emailAPI) messages() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]any(nil), e.received...)
}

type env struct {
	router  http.Handler
	store   *memstore.Store
	email   *emailAPI
	metrics *observability.Metrics
}

func newEnv(t *testing.T, emailStatus int) *env {
	t.Helper()

	// --- Mock email API ---
	api := &emailAPI{status: emailStatus}
	emailServer := httptest.NewServer(api)
	t.Cleanup(emailServer.Close)

	// --- Seed data ---
	store := memstore.New()
	price := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }
	pct := decimal.RequireFromString("10")
	four, thirty := 4, 30
	for _, err := range []error{
		store.Seed(domain.EntityClient,
			domain.Client{ID: "cli-rj", Name: "Confeitaria Carioca", Email: "financeiro@confeitaria.example", State: "RJ"},
			domain.Client{ID: "cli-am", Name: "Empório Manaus", Email: "compras@emporio.example", State: "AM"},
		),
		store.Seed(domain.EntityProduct,
			domain.Product{ID: "prod-batedeira", Name: "Batedeira planetária", PriceRegionA: price("2500.00"), PriceRegionB: price("2650.00"), PriceRegionOther: price("2800.00")},
			domain.Product{ID: "prod-vitrine", Name: "Vitrine refrigerada", PriceRegionA: price("3999.90"), PriceRegionB: price("4199.90")},
		),
		store.Seed(domain.EntityPaymentOption,
			domain.PaymentOptionTemplate{ID: "tpl-10-4x", Description: "Entrada 10% + 4x", DownPaymentPercent: &pct, InstallmentCount: &four, DaysBetweenInstallments: &thirty},
		),
	} {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// --- Build services ---
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	clock := fixedClock{now: time.Date(2026, time.May, 4, 14, 30, 0, 0, time.UTC)}
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 5 * time.Millisecond, MaxConcurrency: 4}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	templates := cache.New[[]domain.PaymentOptionTemplate](time.Minute)
	t.Cleanup(templates.Close)

	email := client.NewEmailClient(httpClient, emailServer.URL, "test-key", "orcamentos@test.example",
		resilience.NewCircuitBreaker("email-"+t.Name()), cfg, resilience.NewBulkhead(cfg.MaxConcurrency))

	catalog := service.NewCatalogService(store, templates, metrics, logger)
	quotes := service.NewQuoteService(store, service.NewStoreNotifier(store, clock), email, clock, metrics, logger)
	payments := service.NewPaymentService(store, catalog, quotes, clock, metrics, logger)

	router := handler.NewRouter(handler.Deps{
		Catalog:  catalog,
		Quotes:   quotes,
		Payments: payments,
		Probes:   []handler.Probe{{Name: "memstore", Ping: store.Ping}},
	}, metrics, logger)

	return &env{router: router, store: store, email: api, metrics: metrics}
}

func (e *env) do(t *testing.T, method, path string, body any, want int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "rep-integration")
	rec := httptest.NewRecorder()

	e.router.ServeHTTP(rec, req)

	if rec.Code != want {
		t.Fatalf("%s %s: expected %d, got %d. Body: %s", method, path, want, rec.Code, rec.Body.String())
	}
	return rec.Body.Bytes()
}

func decodeInto[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

// TestIntegration_FullFlow drives a quote from draft to approved through the
// HTTP API and checks the notifications that reach the email API and the store.
func TestIntegration_FullFlow(t *testing.T) {
	e := newEnv(t, http.StatusAccepted)

	// --- Pricing ---
	pq := decodeInto[domain.PriceQuote](t, e.do(t, http.MethodGet, "/v1/products/prod-batedeira/price?region=am", nil, http.StatusOK))
	if !pq.UnitPrice.Equal(decimal.RequireFromString("2800")) {
		t.Errorf("expected region other price for AM, got %s (%s)", pq.UnitPrice, pq.Tier)
	}
	pq = decodeInto[domain.PriceQuote](t, e.do(t, http.MethodGet, "/v1/products/prod-vitrine/price?region=AM", nil, http.StatusOK))
	if !pq.UnitPrice.IsZero() {
		t.Errorf("expected zero for a missing tier price, got %s", pq.UnitPrice)
	}

	// --- Quote with two items ---
	q := decodeInto[domain.Quote](t, e.do(t, http.MethodPost, "/v1/quotes", map[string]any{"client_id": "cli-rj", "notes": "entrega em junho"}, http.StatusCreated))
	base := "/v1/quotes/" + q.ID

	e.do(t, http.MethodPost, base+"/items", map[string]any{"product_id": "prod-batedeira", "quantity": 2}, http.StatusCreated)
	e.do(t, http.MethodPost, base+"/items", map[string]any{"product_id": "prod-vitrine", "quantity": 1}, http.StatusCreated)

	total := decodeInto[domain.QuoteTotal](t, e.do(t, http.MethodGet, base+"/total", nil, http.StatusOK))
	if !total.Total.Equal(decimal.RequireFromString("9499.90")) || total.ItemCount != 2 {
		t.Fatalf("unexpected total %+v", total)
	}

	// --- Payment condition ---
	cond := decodeInto[domain.PaymentCondition](t, e.do(t, http.MethodPost, base+"/payment-conditions",
		map[string]any{"template_id": "tpl-10-4x", "payment_method": "boleto"}, http.StatusCreated))
	if !cond.DownPayment.Equal(decimal.RequireFromString("949.99")) {
		t.Errorf("expected down payment 949.99, got %s", cond.DownPayment)
	}
	if cond.PaymentMethod != domain.PaymentMethodInvoice {
		t.Errorf("expected invoice, got %s", cond.PaymentMethod)
	}
	if len(cond.Schedule) != 5 {
		t.Fatalf("expected down payment plus 4 installments, got %d entries", len(cond.Schedule))
	}
	if !cond.InstallmentValue.Equal(decimal.RequireFromString("2137.48")) {
		t.Errorf("expected installments of 2137.48, got %s", cond.InstallmentValue)
	}
	if !cond.TotalWithInterest.Equal(total.Total) {
		t.Errorf("expected total %s without interest, got %s", total.Total, cond.TotalWithInterest)
	}
	last := cond.Schedule[len(cond.Schedule)-1]
	if want := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC); !last.DueDate.Equal(want) {
		t.Errorf("expected last installment due %s, got %s", want, last.DueDate)
	}

	// --- Lifecycle ---
	e.do(t, http.MethodPost, base+"/status", map[string]any{"status": "sent"}, http.StatusOK)
	e.do(t, http.MethodPost, base+"/items", map[string]any{"product_id": "prod-vitrine", "quantity": 1}, http.StatusConflict)
	approved := decodeInto[domain.Quote](t, e.do(t, http.MethodPost, base+"/status", map[string]any{"status": "approved"}, http.StatusOK))
	if approved.ApprovedAt == nil {
		t.Error("expected approved_at to be set")
	}

	full := decodeInto[domain.Quote](t, e.do(t, http.MethodGet, base, nil, http.StatusOK))
	if len(full.Items) != 2 || len(full.PaymentConditions) != 1 || full.Status != domain.QuoteStatusApproved {
		t.Errorf("unexpected quote %+v", full)
	}

	// --- Notifications ---
	msgs := e.email.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(msgs))
	}
	if msgs[0]["template"] != string(domain.EmailQuoteSent) || msgs[1]["template"] != string(domain.EmailQuoteApproved) {
		t.Errorf("unexpected templates %v / %v", msgs[0]["template"], msgs[1]["template"])
	}
	if msgs[1]["to"] != "financeiro@confeitaria.example" {
		t.Errorf("unexpected recipient %v", msgs[1]["to"])
	}
	if e.store.Count(domain.EntityNotification) != 2 {
		t.Errorf("expected 2 in-app notifications, got %d", e.store.Count(domain.EntityNotification))
	}

	stats := decodeInto[domain.QuoteMetrics](t, e.do(t, http.MethodGet, "/v1/metrics/quotes", nil, http.StatusOK))
	if stats.Transitions["draft->sent"] != 1 || stats.Transitions["sent->approved"] != 1 {
		t.Errorf("unexpected transitions %v", stats.Transitions)
	}
	if stats.NotificationsSent != 4 || stats.NotificationsError != 0 {
		t.Errorf("expected 4 notifications sent, got %+v", stats)
	}
}

// TestIntegration_EmailOutage checks that a failing email API does not block
// the status change.
func TestIntegration_EmailOutage(t *testing.T) {
	e := newEnv(t, http.StatusServiceUnavailable)

	q := decodeInto[domain.Quote](t, e.do(t, http.MethodPost, "/v1/quotes", map[string]any{"client_id": "cli-am"}, http.StatusCreated))
	base := "/v1/quotes/" + q.ID
	e.do(t, http.MethodPost, base+"/items", map[string]any{"product_id": "prod-batedeira", "quantity": 1}, http.StatusCreated)

	sent := decodeInto[domain.Quote](t, e.do(t, http.MethodPost, base+"/status", map[string]any{"status": "sent"}, http.StatusOK))
	if sent.Status != domain.QuoteStatusSent {
		t.Errorf("expected sent, got %s", sent.Status)
	}

	// initial attempt plus one retry
	if got := len(e.email.messages()); got != 2 {
		t.Errorf("expected 2 delivery attempts, got %d", got)
	}

	snap := e.metrics.Snapshot()
	if snap.NotificationsError != 1 || snap.NotificationsSent != 1 {
		t.Errorf("expected 1 in-app sent and 1 email failed, got %+v", snap)
	}
}

// TestIntegration_QuoteNotFound checks the 404 path end to end.
func TestIntegration_QuoteNotFound(t *testing.T) {
	e := newEnv(t, http.StatusAccepted)

	e.do(t, http.MethodGet, "/v1/quotes/nonexistent", nil, http.StatusNotFound)
	e.do(t, http.MethodPost, "/v1/quotes/nonexistent/status", map[string]any{"status": "sent"}, http.StatusNotFound)
	e.do(t, http.MethodPost, "/v1/quotes", map[string]any{"client_id": "ghost"}, http.StatusNotFound)
}
