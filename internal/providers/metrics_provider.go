package providers

import (
	"time"

	"cryptogram/internal/structures"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncGamesStarted(mode string)
	IncGamesFinished(result string)
	IncGuesses(result string)
	IncHints()
	IncDailyFetch(source string)
	IncUploads(result string)
	SetPendingUploads(count int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	gamesStarted        *prometheus.CounterVec
	gamesFinished       *prometheus.CounterVec
	guesses             *prometheus.CounterVec
	hints               prometheus.Counter
	dailyFetch          *prometheus.CounterVec
	uploads             *prometheus.CounterVec
	pendingUploads      prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncGamesStarted(mode string) {
	m.gamesStarted.WithLabelValues(mode).Inc()
}

func (m *MetricsProvider) IncGamesFinished(result string) {
	m.gamesFinished.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) IncGuesses(result string) {
	m.guesses.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) IncHints() {
	m.hints.Inc()
}

func (m *MetricsProvider) IncDailyFetch(source string) {
	m.dailyFetch.WithLabelValues(source).Inc()
}

func (m *MetricsProvider) IncUploads(result string) {
	m.uploads.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) SetPendingUploads(count int) {
	m.pendingUploads.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptogram_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptogram_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cryptogram_quote_cache_hits_total",
			Help: "Total number of quote cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cryptogram_quote_cache_misses_total",
			Help: "Total number of quote cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptogram_persistence_duration_seconds",
			Help:    "Duration of puzzle save operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		gamesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptogram_games_started_total",
			Help: "Games started by mode",
		}, []string{"mode"}),

		gamesFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptogram_games_finished_total",
			Help: "Games finished by result",
		}, []string{"result"}),

		guesses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptogram_guesses_total",
			Help: "Guesses by result",
		}, []string{"result"}),

		hints: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cryptogram_hints_total",
			Help: "Hints taken",
		}),

		dailyFetch: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptogram_daily_fetch_total",
			Help: "Daily puzzle lookups by source",
		}, []string{"source"}),

		uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptogram_uploads_total",
			Help: "Completed-game uploads by result",
		}, []string{"result"}),

		pendingUploads: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cryptogram_pending_uploads",
			Help: "Completed games waiting for upload",
		}),
	}
}

// noopMetrics is used when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncGamesStarted(_ string)                         {}
func (n *noopMetrics) IncGamesFinished(_ string)                        {}
func (n *noopMetrics) IncGuesses(_ string)                              {}
func (n *noopMetrics) IncHints()                                        {}
func (n *noopMetrics) IncDailyFetch(_ string)                           {}
func (n *noopMetrics) IncUploads(_ string)                              {}
func (n *noopMetrics) SetPendingUploads(_ int)                          {}
