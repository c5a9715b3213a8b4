package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesdash/internal/engine"
)

const namespace = "salesdash"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal *prometheus.CounterVec
	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration *prometheus.HistogramVec
	// In-flight HTTP requests
	httpInFlight prometheus.Gauge

	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	recordsLoaded *prometheus.GaugeVec
	wsClients     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		}),
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Sales data fetches by year and outcome",
			},
			[]string{"year", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Wall time of sales data fetches, including simulated latency",
				Buckets:   []float64{.01, .05, .1, .25, .5, .75, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),
		recordsLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_loaded",
				Help:      "Records held by the session after the last successful fetch",
			},
			[]string{"year"},
		),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request metrics. Labels are kept low-cardinality by
// using the matched route path when available.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			labels := prometheus.Labels{
				"method": c.Request().Method,
				"route":  route,
				"status": strconv.Itoa(status),
			}
			m.httpRequestsTotal.With(labels).Inc()
			m.httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveFetch implements engine.Observer.
func (m *Metrics) ObserveFetch(year int, d time.Duration, records int, err error) {
	outcome := Outcome(err)
	m.fetchesTotal.WithLabelValues(strconv.Itoa(year), outcome).Inc()
	m.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if err == nil {
		m.recordsLoaded.Reset()
		m.recordsLoaded.WithLabelValues(strconv.Itoa(year)).Set(float64(records))
	}
}

// SetWebsocketClients reports the current websocket client count.
func (m *Metrics) SetWebsocketClients(n int) { m.wsClients.Set(float64(n)) }

// Outcome classifies a fetch error into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, engine.ErrUnsupportedYear):
		return "unsupported_year"
	case errors.Is(err, engine.ErrSuperseded):
		return "superseded"
	case errors.Is(err, engine.ErrGeneration):
		return "generation_failed"
	default:
		return "error"
	}
}

var _ engine.Observer = (*Metrics)(nil)
