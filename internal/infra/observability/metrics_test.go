package observability_test

import (
	"testing"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrTransition(domain.QuoteStatusDraft, domain.QuoteStatusSent)

	assert.Equal(t, int64(1), a.Snapshot().Transitions["draft->sent"])
	assert.Empty(t, b.Snapshot().Transitions)
}

func TestSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrTransition(domain.QuoteStatusDraft, domain.QuoteStatusSent)
	m.IncrTransition(domain.QuoteStatusDraft, domain.QuoteStatusSent)
	m.IncrTransition(domain.QuoteStatusSent, domain.QuoteStatusApproved)
	m.IncrNotification("in_app", true)
	m.IncrNotification("email", true)
	m.IncrNotification("email", false)
	m.IncrCacheHit("payment_options")
	m.IncrCacheHit("payment_options")
	m.IncrCacheHit("payment_options")
	m.IncrCacheMiss("payment_options")
	m.ObserveOperation("quote.transition", 15*time.Millisecond)

	snap := m.Snapshot()

	assert.Equal(t, map[string]int64{"draft->sent": 2, "sent->approved": 1}, snap.Transitions)
	assert.Equal(t, int64(2), snap.NotificationsSent)
	assert.Equal(t, int64(1), snap.NotificationsError)
	assert.InDelta(t, 0.75, snap.CacheHitRate, 1e-9)
	assert.Equal(t, "all_time", snap.Period)
}

func TestSnapshot_NoCacheTraffic(t *testing.T) {
	snap := observability.NewMetrics().Snapshot()
	assert.Zero(t, snap.CacheHitRate)
	assert.NotNil(t, snap.Transitions)
}

func TestRegistry_ExposesCollectors(t *testing.T) {
	m := observability.NewMetrics()
	m.IncrExternalError("supabase/quotes")
	m.IncrTransition(domain.QuoteStatusSent, domain.QuoteStatusRejected)

	n, err := testutil.GatherAndCount(m.Registry, "orcamento_external_errors_total", "orcamento_status_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
