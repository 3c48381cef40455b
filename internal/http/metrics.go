package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
	"github.com/Richiestixx/SiteRightApp/internal/service/project"
)

const metricsNamespace = "siteright"

// Log entry write operations.
const (
	entryOpCreate   = "create"
	entryOpComplete = "complete"
	entryOpNotes    = "append_notes"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}))

		r.requestLatency = registerHistogram(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}))

		r.rateLimitHits = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}))

		r.entryWrites = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "logs",
			Name:      "entry_writes_total",
			Help:      "Log entry writes by operation and outcome",
		}, []string{"operation", "outcome"}))

		r.metricsInitialized = true
	})
}

// registerCounter returns the collector already registered under the same
// name when one exists, so several routers in one process share series.
func registerCounter(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return vec
}

func registerHistogram(vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return vec
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

// recordEntryWrite counts a create, complete or notes write. A create that
// replays an idempotency key is counted as "replayed".
func (r *Router) recordEntryWrite(operation string, err error, replayed bool) {
	if !r.metricsInitialized {
		return
	}
	r.entryWrites.With(prometheus.Labels{"operation": operation, "outcome": entryOutcome(err, replayed)}).Inc()
}

func entryOutcome(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation), project.IsValidationError(err), errors.Is(err, repository.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}
