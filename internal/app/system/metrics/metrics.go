// internal/app/system/metrics/metrics.go
//
// Package metrics holds the service's Prometheus collectors on a private
// registry exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "questhub"

// Registry is the registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var (
	// Notifications counts dispatcher outcomes by result
	// (enqueued, delivered, failed, dropped).
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "events_total",
		Help:      "Notification events by outcome.",
	}, []string{"result"})

	// NotifyQueueDepth is the number of events waiting to be written.
	NotifyQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "queue_depth",
		Help:      "Notification events waiting in the dispatcher queue.",
	})

	// XPPayouts counts first-completion payouts; XPAwarded sums their XP.
	XPPayouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gamify",
		Name:      "payouts_total",
		Help:      "Tasks that paid out XP on first completion.",
	})
	XPAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gamify",
		Name:      "xp_awarded_total",
		Help:      "Total XP awarded.",
	})

	// BadgeUnlocks counts badges by id.
	BadgeUnlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gamify",
		Name:      "badge_unlocks_total",
		Help:      "Badges unlocked, by badge id.",
	}, []string{"badge"})

	// TemplateFallbacks counts built-in template use by reason.
	TemplateFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "templategen",
		Name:      "fallbacks_total",
		Help:      "Template requests served from the built-in set, by reason.",
	}, []string{"reason"})

	// CodeRuns counts sandbox runs by result (ok, rejected, failed).
	CodeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "codeexec",
		Name:      "runs_total",
		Help:      "Code runs forwarded to the sandbox, by result.",
	}, []string{"result"})

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Notifications,
		NotifyQueueDepth,
		XPPayouts,
		XPAwarded,
		BadgeUnlocks,
		TemplateFallbacks,
		CodeRuns,
		HTTPDuration,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records HTTPDuration for each request, labelled by the chi
// route pattern so IDs do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
