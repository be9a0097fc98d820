package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/cache"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/memstore"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/port"
	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sentInApp struct {
	UserID, Title, Message string
	Payload                map[string]any
}

type mockInApp struct {
	mu   sync.Mutex
	sent []sentInApp
	err  error
}

func (m *mockInApp) NotifyInApp(_ context.Context, userID, title, message string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentInApp{UserID: userID, Title: title, Message: message, Payload: payload})
	return nil
}

func (m *mockInApp) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type sentEmail struct {
	To   string
	Kind domain.EmailKind
	Data map[string]any
}

type mockEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockEmail) SendEmail(_ context.Context, to string, kind domain.EmailKind, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{To: to, Kind: kind, Data: data})
	return nil
}

func (m *mockEmail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// faultyStore wraps the in-memory store and fails writes on demand.
type faultyStore struct {
	*memstore.Store
	failUpdate map[domain.Entity]error
	failInsert map[domain.Entity]error
	lists      map[domain.Entity]*atomic.Int32
	mu         sync.Mutex
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:      memstore.New(),
		failUpdate: map[domain.Entity]error{},
		failInsert: map[domain.Entity]error{},
		lists:      map[domain.Entity]*atomic.Int32{},
	}
}

func (s *faultyStore) Update(ctx context.Context, entity domain.Entity, id string, patch map[string]any) error {
	if err := s.failUpdate[entity]; err != nil {
		return err
	}
	return s.Store.Update(ctx, entity, id, patch)
}

func (s *faultyStore) Insert(ctx context.Context, entity domain.Entity, record map[string]any, dst any) error {
	if err := s.failInsert[entity]; err != nil {
		return err
	}
	return s.Store.Insert(ctx, entity, record, dst)
}

func (s *faultyStore) List(ctx context.Context, entity domain.Entity, filter port.Filter, dst any) error {
	s.mu.Lock()
	c, ok := s.lists[entity]
	if !ok {
		c = &atomic.Int32{}
		s.lists[entity] = c
	}
	s.mu.Unlock()
	c.Add(1)
	return s.Store.List(ctx, entity, filter, dst)
}

func (s *faultyStore) listCalls(entity domain.Entity) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.lists[entity]; ok {
		return c.Load()
	}
	return 0
}

// --- Fixtures ---

var now = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

type fixture struct {
	store   *faultyStore
	inApp   *mockInApp
	email   *mockEmail
	metrics *observability.Metrics
	catalog *service.CatalogService
	quotes  *service.QuoteService
	payment *service.PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, zap.NewNop())
}

func newFixtureWithLogger(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()

	store := newFaultyStore()
	seed(t, store.Store)

	clock := fixedClock{now: now}
	metrics := observability.NewMetrics()
	templates := cache.New[[]domain.PaymentOptionTemplate](time.Minute)
	t.Cleanup(templates.Close)

	f := &fixture{
		store:   store,
		inApp:   &mockInApp{},
		email:   &mockEmail{},
		metrics: metrics,
	}
	f.catalog = service.NewCatalogService(store, templates, metrics, logger)
	f.quotes = service.NewQuoteService(store, f.inApp, f.email, clock, metrics, logger)
	f.payment = service.NewPaymentService(store, f.catalog, f.quotes, clock, metrics, logger)
	return f
}

func seed(t *testing.T, s *memstore.Store) {
	t.Helper()

	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	must(s.Seed(domain.EntityClient,
		domain.Client{ID: "cli-sp", Name: "Padaria Paulista", Email: "compras@padaria.example", State: "SP"},
		domain.Client{ID: "cli-mg", Name: "Mercado Mineiro", Email: "contato@mercado.example", State: "MG"},
		domain.Client{ID: "cli-ba", Name: "Loja Baiana", State: "BA"},
	))
	must(s.Seed(domain.EntityProduct,
		domain.Product{ID: "prod-forno", Name: "Forno industrial", PriceRegionA: nullDec("1000.00"), PriceRegionB: nullDec("1100.00"), PriceRegionOther: nullDec("1200.00")},
		domain.Product{ID: "prod-balcao", Name: "Balcão refrigerado", PriceRegionA: nullDec("80.00"), PriceRegionB: nullDec("90.50")},
	))
	must(s.Seed(domain.EntityPaymentOption,
		domain.PaymentOptionTemplate{ID: "tpl-entrada-3x", Description: "Entrada 20% + 3x", DownPaymentPercent: decPtr("20"), InstallmentCount: intPtr(3), DaysBetweenInstallments: intPtr(30)},
		domain.PaymentOptionTemplate{ID: "tpl-6x", Description: "6x mensais", DownPaymentPercent: decPtr("0"), InstallmentCount: intPtr(6), DaysBetweenInstallments: intPtr(30)},
		domain.PaymentOptionTemplate{ID: "tpl-30d", Description: "À vista 30 dias", DaysBetweenInstallments: intPtr(30)},
	))
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s, got %s", want, got.String())
	}
}
