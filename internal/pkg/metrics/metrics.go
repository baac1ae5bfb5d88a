package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics owns the service's Prometheus collectors. Each instance has its own
// registry so tests can build as many as they like.
type Metrics struct {
	registry             *prometheus.Registry
	requestTotal         *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	verificationOutcomes *prometheus.CounterVec
	authzDecisions       *prometheus.CounterVec
	mailDeliveries       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deptsite",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deptsite",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		verificationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deptsite",
			Subsystem: "verification",
			Name:      "outcomes_total",
			Help:      "Verification code verify/use outcomes",
		}, []string{"op", "outcome"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deptsite",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Route guard decisions",
		}, []string{"decision"}),
		mailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deptsite",
			Subsystem: "mail",
			Name:      "deliveries_total",
			Help:      "Verification email hand-offs by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.requestTotal, m.requestDuration, m.verificationOutcomes, m.authzDecisions, m.mailDeliveries,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveVerification matches verification.Observer.
func (m *Metrics) ObserveVerification(op, outcome string) {
	m.verificationOutcomes.With(prometheus.Labels{"op": op, "outcome": outcome}).Inc()
}

// ObserveAuthz records a guard decision ("allow", "deny", "unauthenticated").
func (m *Metrics) ObserveAuthz(decision string) {
	m.authzDecisions.With(prometheus.Labels{"decision": decision}).Inc()
}

// ObserveMail records the result of a mail hand-off.
func (m *Metrics) ObserveMail(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.mailDeliveries.With(prometheus.Labels{"result": result}).Inc()
}

// Middleware records count and latency per chi route pattern. Requests that
// matched no route are labelled "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		m.requestTotal.With(labels).Inc()
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	return rr.ResponseWriter.Write(b)
}
