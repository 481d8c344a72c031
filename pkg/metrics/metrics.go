package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// ActiveSubscriptions counts live gateway listeners by topic.
	ActiveSubscriptions *prometheus.GaugeVec
	// Resolutions counts session resolver outcomes by final state.
	Resolutions *prometheus.CounterVec
	// AuthFailures counts rejected auth attempts by code.
	AuthFailures *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers collectors on a private registry so repeated construction
// (tests, multiple servers in one process) never collides.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ActiveSubscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "active_subscriptions",
				Help:      "Number of live data subscriptions",
			},
			[]string{"topic"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "resolutions_total",
				Help:      "Session role resolutions by resulting state",
			},
			[]string{"state"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Rejected authentication attempts by code",
			},
			[]string{"code"},
		),
		gatherer: registry,
	}

	registry.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.ActiveSubscriptions,
		m.Resolutions,
		m.AuthFailures,
		prometheus.NewGoCollector(),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestCount.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// TrackSubscription increments the gauge for topic and returns the matching
// decrement. Safe on a nil receiver.
func (m *Metrics) TrackSubscription(topic string) func() {
	if m == nil {
		return func() {}
	}
	g := m.ActiveSubscriptions.WithLabelValues(topic)
	g.Inc()
	return g.Dec
}

// ObserveResolution is safe on a nil receiver.
func (m *Metrics) ObserveResolution(state string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(state).Inc()
}

// ObserveAuthFailure is safe on a nil receiver.
func (m *Metrics) ObserveAuthFailure(code string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(code).Inc()
}
