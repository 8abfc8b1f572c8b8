package metrics

import (
	"bufio"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bountyboard",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bountyboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	bountyTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyboard",
			Subsystem: "bounties",
			Name:      "transitions_total",
			Help:      "Bounty lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	escrowEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyboard",
			Subsystem: "escrow",
			Name:      "events_total",
			Help:      "Escrow operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyboard",
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Payment provider webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	pushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyboard",
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Web Push deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	digestEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyboard",
			Subsystem: "digest",
			Name:      "emails_total",
			Help:      "Digest emails by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		bountyTransitions,
		escrowEvents,
		webhookEvents,
		pushDeliveries,
		digestEmails,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordBountyTransition counts a lifecycle move into status.
func RecordBountyTransition(status string) {
	bountyTransitions.WithLabelValues(status).Inc()
}

// RecordEscrow counts an escrow operation (fund, release, refund) outcome.
func RecordEscrow(operation string, success bool) {
	outcome := "error"
	if success {
		outcome = "ok"
	}
	escrowEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordWebhook counts a processed webhook event.
func RecordWebhook(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordPush counts a push delivery attempt.
func RecordPush(outcome string) {
	pushDeliveries.WithLabelValues(outcome).Inc()
}

// RecordDigest counts a digest email outcome.
func RecordDigest(outcome string) {
	digestEmails.WithLabelValues(outcome).Inc()
}

var numericSegment = regexp.MustCompile(`^[0-9]+$`)

// CanonicalPath collapses numeric ids so label cardinality stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if numericSegment.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}
