package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scanDuration *prometheus.HistogramVec
	scanResults  *prometheus.GaugeVec
	cacheHits    *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	selections   *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

var (
	recorder     *Recorder
	recorderOnce sync.Once
)

// New returns the process-wide Prometheus recorder. Collectors are registered
// on first use only.
func New() *Recorder {
	recorderOnce.Do(func() {
		recorder = &Recorder{
			scanDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "signalbot_scan_duration_seconds",
					Help:    "Duration of market scans",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
				},
				[]string{"class"},
			),
			scanResults: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "signalbot_scan_candidates",
					Help: "Ranked candidates produced by the last scan",
				},
				[]string{"class"},
			),
			cacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalbot_scan_cache_hits_total",
					Help: "Scans served from the ranking cache",
				},
				[]string{"class"},
			),
			fetchErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalbot_fetch_errors_total",
					Help: "Market data fetch failures after retries",
				},
				[]string{"symbol"},
			),
			fallbacks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalbot_fallback_signals_total",
					Help: "Placeholder signals produced",
				},
				[]string{"reason"},
			),
			selections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalbot_selections_total",
					Help: "Signals selected for delivery",
				},
				[]string{"class", "instrument"},
			),
			outcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalbot_outcomes_total",
					Help: "Reported signal outcomes",
				},
				[]string{"class", "won"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signalbot_errors_total",
					Help: "Total number of errors encountered",
				},
				[]string{"type"},
			),
		}
	})
	return recorder
}

// RecordScan records a completed scan.
func (r *Recorder) RecordScan(class string, seconds float64, candidates int) {
	r.scanDuration.WithLabelValues(class).Observe(seconds)
	r.scanResults.WithLabelValues(class).Set(float64(candidates))
}

// RecordCacheHit records a scan answered from cache.
func (r *Recorder) RecordCacheHit(class string) {
	r.cacheHits.WithLabelValues(class).Inc()
}

// RecordFetchError records a market data failure.
func (r *Recorder) RecordFetchError(symbol string) {
	r.fetchErrors.WithLabelValues(symbol).Inc()
}

// RecordFallback records a placeholder signal.
func (r *Recorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordSelection records a delivered pick.
func (r *Recorder) RecordSelection(class, instrument string) {
	r.selections.WithLabelValues(class, instrument).Inc()
}

// RecordOutcome records a settled signal.
func (r *Recorder) RecordOutcome(class string, won bool) {
	r.outcomes.WithLabelValues(class, strconv.FormatBool(won)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
