package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	datagramsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xplane_datagrams_total",
		Help: "Datagrams received from the simulator.",
	})

	datagramBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xplane_datagram_bytes",
		Help:    "Size of received datagrams.",
		Buckets: prometheus.LinearBuckets(5, 36, 10),
	})

	decodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xplane_decode_errors_total",
			Help: "Datagrams rejected by framing validation.",
		},
		[]string{"reason"},
	)

	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xplane_records_total",
			Help: "Decoded entries by data set.",
		},
		[]string{"tag"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xplane_notifications_total",
			Help: "Change notifications emitted by the position provider.",
		},
		[]string{"kind"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xplane_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xplane_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(datagramsTotal)
	prometheus.MustRegister(datagramBytes)
	prometheus.MustRegister(decodeErrorsTotal)
	prometheus.MustRegister(recordsTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

func ObserveDatagram(size int) {
	datagramsTotal.Inc()
	datagramBytes.Observe(float64(size))
}

func ObserveDecodeError(reason string) {
	decodeErrorsTotal.WithLabelValues(reason).Inc()
}

func ObserveRecord(tag string) {
	recordsTotal.WithLabelValues(tag).Inc()
}

func ObserveNotification(kind string) {
	notificationsTotal.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijack")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

var knownRoutes = map[string]bool{
	"/":             true,
	"/api/status":   true,
	"/api/provider": true,
	"/api/logs":     true,
	"/ws":           true,
	"/metrics":      true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}
