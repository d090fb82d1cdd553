package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "catalog"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "provider_requests_total", Help: "Outbound provider requests."},
		[]string{"source", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_request_duration_seconds",
			Help:    "Outbound provider request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
	IndexOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "index_listings_total", Help: "Indexed listings by outcome."},
		[]string{"source", "outcome"}, // outcome: created|merged
	)
	MatchScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "match_best_score",
			Help:    "Best candidate score per scored listing.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "jobs_finished_total", Help: "Index jobs by terminal status."},
		[]string{"status"},
	)
	JobsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "jobs_rejected_total", Help: "Index jobs rejected at capacity."},
	)
	JobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "jobs_running", Help: "Index jobs currently holding a worker slot."},
	)
)

// Serve exposes /metrics on its own listener; an empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		ExternalRequests, ExternalLatency,
		CacheEvents,
		IndexOutcomes, MatchScores,
		JobsFinished, JobsRejected, JobsRunning,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(source, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(source, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(source, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveIndexed(source, outcome string) {
	IndexOutcomes.WithLabelValues(source, outcome).Inc()
}

func ObserveMatchScore(score int) {
	MatchScores.Observe(float64(score))
}

func ObserveJobFinished(status string) {
	JobsFinished.WithLabelValues(status).Inc()
}
