package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chat",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "active_sessions",
		Help:      "Number of live chat sessions",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "active_rooms",
		Help:      "Number of non-empty rooms",
	})

	joins = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "joins_total",
		Help:      "Total number of accepted room joins",
	})

	messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "messages_total",
		Help:      "Chat messages by outcome",
	}, []string{"result"})

	heartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "heartbeats_total",
		Help:      "Heartbeats by outcome",
	}, []string{"result"})

	reaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "sessions_reaped_total",
		Help:      "Sessions terminated by the stale session reaper",
	})

	kicked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "sessions_kicked_total",
		Help:      "Sessions terminated by an administrative kick",
	})
)

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }
func SetActiveRooms(n int)    { activeRooms.Set(float64(n)) }
func IncJoin()                { joins.Inc() }
func IncReaped()              { reaped.Inc() }
func IncKicked()              { kicked.Inc() }

func IncMessage(relayed bool) {
	if relayed {
		messages.WithLabelValues("relayed").Inc()
		return
	}
	messages.WithLabelValues("dropped").Inc()
}

func IncHeartbeat(ok bool) {
	if ok {
		heartbeats.WithLabelValues("ok").Inc()
		return
	}
	heartbeats.WithLabelValues("invalid").Inc()
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required so the websocket upgrade works through the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("chat metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
