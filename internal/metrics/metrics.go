// Package metrics exposes Prometheus collectors for the gazette monitor.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Document outcomes.
const (
	OutcomeSkipped = "skipped"
	OutcomeScanned = "scanned"
	OutcomeFailed  = "failed"
)

var (
	registry *prometheus.Registry

	documentsTotal         *prometheus.CounterVec
	pagesScannedTotal      *prometheus.CounterVec
	findingsTotal          *prometheus.CounterVec
	discoveryFailuresTotal *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec
	runDurationSeconds     prometheus.Gauge
	historySize            prometheus.Gauge
	rateLimitDelaySeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the collectors on a dedicated registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		register := func(c prometheus.Collector) {
			registry.MustRegister(c)
		}

		documentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gazette_documents_total",
				Help: "Documents handed to the processor, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)
		register(documentsTotal)

		pagesScannedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gazette_pages_scanned_total",
				Help: "Pages with extractable text that were matched against the watch-list.",
			},
			[]string{"source"},
		)
		register(pagesScannedTotal)

		findingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gazette_findings_total",
				Help: "Findings produced, labeled by source.",
			},
			[]string{"source"},
		)
		register(findingsTotal)

		discoveryFailuresTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gazette_discovery_failures_total",
				Help: "Discovery phases that failed outright, labeled by source.",
			},
			[]string{"source"},
		)
		register(discoveryFailuresTotal)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gazette_notifications_total",
				Help: "Notification attempts, labeled by channel and status.",
			},
			[]string{"channel", "status"},
		)
		register(notificationsTotal)

		runDurationSeconds = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gazette_run_duration_seconds",
				Help: "Wall time of the last monitoring run.",
			},
		)
		register(runDurationSeconds)

		historySize = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gazette_history_size",
				Help: "Number of document locations recorded in history.",
			},
		)
		register(historySize)

		rateLimitDelaySeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gazette_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host download limiter.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)
		register(rateLimitDelaySeconds)
	})
}

// Registry returns the registry holding every collector.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// ObserveDocument increments the document counter.
func ObserveDocument(source, outcome string) {
	Init()
	documentsTotal.WithLabelValues(source, outcome).Inc()
}

// ObservePages adds scanned pages for a source.
func ObservePages(source string, pages int) {
	Init()
	if pages > 0 {
		pagesScannedTotal.WithLabelValues(source).Add(float64(pages))
	}
}

// ObserveFindings adds findings for a source.
func ObserveFindings(source string, n int) {
	Init()
	if n > 0 {
		findingsTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveDiscoveryFailure increments the discovery failure counter.
func ObserveDiscoveryFailure(source string) {
	Init()
	discoveryFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveNotification records a notification attempt.
func ObserveNotification(channel, status string) {
	Init()
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// ObserveRun records run duration and the resulting history size.
func ObserveRun(duration time.Duration, history int) {
	Init()
	runDurationSeconds.Set(duration.Seconds())
	historySize.Set(float64(history))
}

// ObserveRateLimitDelay records time spent waiting for a download slot.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// Push sends every collector to a Prometheus Pushgateway.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = "gazette_watch"
	}
	if err := push.New(gatewayURL, job).Gatherer(Registry()).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
