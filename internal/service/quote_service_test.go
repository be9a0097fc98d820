package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func createQuote(t *testing.T, f *fixture, clientID string) *domain.Quote {
	t.Helper()
	q, err := f.quotes.CreateQuote(context.Background(), "rep-1", &domain.CreateQuoteRequest{ClientID: clientID})
	require.NoError(t, err)
	return q
}

func storedQuote(t *testing.T, f *fixture, id string) domain.Quote {
	t.Helper()
	var q domain.Quote
	require.NoError(t, f.store.Get(context.Background(), domain.EntityQuote, id, &q))
	return q
}

func TestCreateQuote_SequentialNumbers(t *testing.T) {
	f := newFixture(t)

	first := createQuote(t, f, "cli-sp")
	second := createQuote(t, f, "cli-mg")

	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, domain.QuoteStatusDraft, first.Status)
	assert.Equal(t, "rep-1", first.OwnerID)
	assert.True(t, first.TotalValue.IsZero())
	assert.True(t, first.CreatedAt.Equal(now))
}

func TestCreateQuote_UnknownClient(t *testing.T) {
	f := newFixture(t)

	_, err := f.quotes.CreateQuote(context.Background(), "rep-1", &domain.CreateQuoteRequest{ClientID: "nope"})

	var notFound *domain.ErrNotFound
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, 0, f.store.Count(domain.EntityQuote))
}

func TestAddItem_PricesByClientRegion(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-mg")

	item, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-balcao", Quantity: 3})
	require.NoError(t, err)

	assertMoney(t, "90.50", item.UnitPrice)
	assertMoney(t, "271.50", item.Subtotal)
	assert.Equal(t, "Balcão refrigerado", item.ProductName)

	_, err = f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-forno", Quantity: 1})
	require.NoError(t, err)

	assertMoney(t, "1371.50", storedQuote(t, f, q.ID).TotalValue)

	full, err := f.quotes.GetQuote(context.Background(), q.ID)
	require.NoError(t, err)
	require.Len(t, full.Items, 2)
	assertMoney(t, "1371.50", full.TotalValue)
}

func TestAddItem_NullTierPriceIsZero(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-ba")

	item, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-balcao", Quantity: 2})
	require.NoError(t, err)

	assert.True(t, item.UnitPrice.IsZero())
	assert.True(t, item.Subtotal.IsZero())
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")

	for _, qty := range []int{0, -2} {
		_, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-forno", Quantity: qty})

		var invalid *domain.ErrInvalidQuantity
		require.True(t, errors.As(err, &invalid), "got %v", err)
		assert.Equal(t, qty, invalid.Quantity)
	}
	assert.Equal(t, 0, f.store.Count(domain.EntityQuoteLineItem))
}

func TestAddItem_LockedOutsideDraft(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")
	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "sent"})
	require.NoError(t, err)

	_, err = f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-forno", Quantity: 1})

	var locked *domain.ErrQuoteLocked
	require.True(t, errors.As(err, &locked), "got %v", err)
	assert.Equal(t, domain.QuoteStatusSent, locked.Status)
}

func TestAddItem_TotalUpdateFailureRollsBackItem(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")
	f.store.failUpdate[domain.EntityQuote] = errors.New("connection reset")

	_, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-forno", Quantity: 1})

	var persist *domain.ErrPersistence
	require.True(t, errors.As(err, &persist), "got %v", err)
	assert.Equal(t, domain.EntityQuote, persist.Entity)
	assert.Equal(t, 0, f.store.Count(domain.EntityQuoteLineItem))
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")
	keep, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-balcao", Quantity: 2})
	require.NoError(t, err)
	drop, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-forno", Quantity: 1})
	require.NoError(t, err)

	updated, err := f.quotes.RemoveItem(context.Background(), q.ID, drop.ID)
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	assert.Equal(t, keep.ID, updated.Items[0].ID)
	assertMoney(t, "160.00", updated.TotalValue)
	assertMoney(t, "160.00", storedQuote(t, f, q.ID).TotalValue)
}

func TestRemoveItem_UnknownItemIsLoggedAndLeavesQuote(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixtureWithLogger(t, zap.New(core))
	q := createQuote(t, f, "cli-sp")
	_, err := f.quotes.AddItem(context.Background(), q.ID, &domain.AddItemRequest{ProductID: "prod-forno", Quantity: 2})
	require.NoError(t, err)

	_, err = f.quotes.RemoveItem(context.Background(), q.ID, "ghost")

	var notFound *domain.ErrItemNotFound
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, 1, logs.FilterMessage("remove of unknown line item ignored").Len())
	assert.Equal(t, 1, f.store.Count(domain.EntityQuoteLineItem))
	assertMoney(t, "2000.00", storedQuote(t, f, q.ID).TotalValue)
}

func TestTotal(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-mg")
	for _, req := range []domain.AddItemRequest{
		{ProductID: "prod-balcao", Quantity: 1},
		{ProductID: "prod-balcao", Quantity: 4},
		{ProductID: "prod-forno", Quantity: 2},
	} {
		_, err := f.quotes.AddItem(context.Background(), q.ID, &req)
		require.NoError(t, err)
	}

	total, err := f.quotes.Total(context.Background(), q.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, total.ItemCount)
	assertMoney(t, "2652.50", total.Total)
}

func TestTransition_SentStampsOnceAndRenotifies(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")

	first, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "sent"})
	require.NoError(t, err)
	require.NotNil(t, first.SentAt)
	sentAt := *first.SentAt

	second, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "sent"})
	require.NoError(t, err)

	assert.True(t, second.SentAt.Equal(sentAt))
	assert.True(t, storedQuote(t, f, q.ID).SentAt.Equal(sentAt))
	assert.Equal(t, 2, f.inApp.count())
	assert.Equal(t, 2, f.email.count())
	assert.Equal(t, "rep-1", f.inApp.sent[0].UserID)
	assert.Equal(t, "compras@padaria.example", f.email.sent[0].To)
	assert.Equal(t, domain.EmailQuoteSent, f.email.sent[0].Kind)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Transitions["draft->sent"])
	assert.Equal(t, int64(1), f.metrics.Snapshot().Transitions["sent->sent"])
}

func TestTransition_ApprovedWithNotes(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")
	notes := "Aprovado por telefone"

	out, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "approved", Notes: &notes})
	require.NoError(t, err)

	stored := storedQuote(t, f, q.ID)
	assert.Equal(t, domain.QuoteStatusApproved, stored.Status)
	assert.Equal(t, notes, stored.Notes)
	require.NotNil(t, stored.ApprovedAt)
	assert.True(t, stored.ApprovedAt.Equal(now))
	assert.Nil(t, out.SentAt)
	require.Equal(t, 1, f.email.count())
	assert.Equal(t, domain.EmailQuoteApproved, f.email.sent[0].Kind)
}

func TestTransition_PersistenceFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")
	f.store.failUpdate[domain.EntityQuote] = errors.New("503 from PostgREST")

	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "sent"})

	var persist *domain.ErrPersistence
	require.True(t, errors.As(err, &persist), "got %v", err)
	assert.Equal(t, 0, f.inApp.count())
	assert.Equal(t, 0, f.email.count())
	assert.Equal(t, domain.QuoteStatusDraft, storedQuote(t, f, q.ID).Status)
}

func TestTransition_NotificationFailureKeepsTransition(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")
	f.inApp.err = errors.New("notifications table unavailable")
	f.email.err = errors.New("smtp down")

	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "rejected"})

	require.NoError(t, err)
	assert.Equal(t, domain.QuoteStatusRejected, storedQuote(t, f, q.ID).Status)
	assert.Equal(t, int64(2), f.metrics.Snapshot().NotificationsError)
}

func TestTransition_EmailOnlyForClientFacingStatuses(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")

	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "cancelled"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.inApp.count())
	assert.Equal(t, 0, f.email.count())
}

func TestTransition_ClientWithoutEmail(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-ba")

	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "sent"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.inApp.count())
	assert.Equal(t, 0, f.email.count())
}

func TestTransition_LeavingTerminalStatusIsAllowedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixtureWithLogger(t, zap.New(core))
	q := createQuote(t, f, "cli-sp")
	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "approved"})
	require.NoError(t, err)

	out, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "draft"})
	require.NoError(t, err)

	assert.Equal(t, domain.QuoteStatusDraft, out.Status)
	assert.NotNil(t, out.ApprovedAt)
	assert.Equal(t, 1, logs.FilterMessage("quote left a terminal status").Len())
}

func TestTransition_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	q := createQuote(t, f, "cli-sp")

	_, err := f.quotes.Transition(context.Background(), q.ID, &domain.TransitionRequest{Status: "archived"})

	var validation *domain.ErrValidation
	require.True(t, errors.As(err, &validation), "got %v", err)
	assert.Equal(t, "status", validation.Field)
}

func TestGetQuote_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.quotes.GetQuote(context.Background(), "missing")

	var notFound *domain.ErrNotFound
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}
