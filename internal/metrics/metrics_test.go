package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderPlaced("COD")
		m.PaymentOutcome("succeeded")
		m.CartOperation("add", nil)
		m.ObserveHTTP("GET", "/cart", 200, time.Millisecond)
		m.EventPublished("order.placed")
		m.EventConsumed("cart", nil)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.OrderPlaced("COD")
	m.OrderPlaced("COD")
	m.OrderPlaced("ONLINE")
	m.CartOperation("update", errors.New("boom"))
	m.PaymentOutcome("succeeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced.WithLabelValues("COD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersPlaced.WithLabelValues("ONLINE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartOperations.WithLabelValues("update", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentOutcomes.WithLabelValues("succeeded")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/products", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `storefront_http_requests_total{method="GET",route="/products",status="200"} 1`))
	assert.Contains(t, body, "storefront_http_request_duration_seconds")
}
