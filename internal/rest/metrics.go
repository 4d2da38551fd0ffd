package rest

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusRequests *prometheus.CounterVec
	prometheusDuration *prometheus.HistogramVec

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utxo_rest_requests_total",
			Help: "Number of REST requests served",
		},
		[]string{
			"route",  // matched route, "none" on a dispatch miss
			"status", // HTTP status sent
		},
	)
	prometheusDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "utxo_rest_request_duration_seconds",
			Help:    "Time spent handling REST requests",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"route"},
	)
}

func observe(route string, status int, start time.Time) {
	prometheusRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	prometheusDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
