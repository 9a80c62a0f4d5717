package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txserver_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txserver_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	StoreConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txserver_store_connect_attempts_total",
			Help: "Total number of MongoDB connection attempts by result",
		},
		[]string{"result"},
	)

	StoreReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "txserver_store_ready",
			Help: "1 when the MongoDB connection is established, 0 otherwise",
		},
	)
)
