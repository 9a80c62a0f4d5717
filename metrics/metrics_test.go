package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, HTTPRequests)
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, StoreConnectAttempts)
	assert.NotNil(t, StoreReady)
}

func TestStoreReadyGauge(t *testing.T) {
	StoreReady.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(StoreReady))
	StoreReady.Set(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(StoreReady))
}

func TestHTTPRequestsCounter(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "200"))
	HTTPRequests.WithLabelValues("GET", "200").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "200")))
}
