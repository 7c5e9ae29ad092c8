// Package metrics exposes Prometheus collectors for the enricher.
package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enricherRecordsTotal          prometheus.Counter
	enricherRowsTotal             *prometheus.CounterVec
	enricherEmailsFoundTotal      prometheus.Counter
	enricherRetryAttemptsTotal    *prometheus.CounterVec
	enricherProxyResponsesTotal   *prometheus.CounterVec
	enricherRateLimitDelaySeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		enricherRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enricher_records_total",
				Help: "Total number of input records processed.",
			},
		)

		enricherRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_rows_total",
				Help: "Total number of output rows appended, labeled by status.",
			},
			[]string{"status"},
		)

		enricherEmailsFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enricher_emails_found_total",
				Help: "Total number of allow-listed emails extracted from profile pages.",
			},
		)

		enricherRetryAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_retry_attempts_total",
				Help: "Attempts made by the retry policy, labeled by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)

		enricherProxyResponsesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_proxy_responses_total",
				Help: "Responses returned by the proxying fetch service, labeled by status code and render mode.",
			},
			[]string{"code", "render_js"},
		)

		enricherRateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enricher_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting for the proxy rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// ObserveRecord counts one processed input record.
func ObserveRecord() {
	Init()
	enricherRecordsTotal.Inc()
}

// ObserveRow counts one appended output row.
func ObserveRow(status string) {
	Init()
	enricherRowsTotal.WithLabelValues(status).Inc()
}

// ObserveEmails adds n extracted emails.
func ObserveEmails(n int) {
	Init()
	if n > 0 {
		enricherEmailsFoundTotal.Add(float64(n))
	}
}

// EmailsFound returns the emails-found counter.
func EmailsFound() prometheus.Counter {
	Init()
	return enricherEmailsFoundTotal
}

// ObserveRetryAttempt records a single attempt outcome ("success", "failure" or "exhausted").
func ObserveRetryAttempt(operation, outcome string) {
	Init()
	enricherRetryAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveProxyResponse counts a response from the proxy by status code.
func ObserveProxyResponse(code int, renderJS bool) {
	Init()
	enricherProxyResponsesTotal.WithLabelValues(strconv.Itoa(code), strconv.FormatBool(renderJS)).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	enricherRateLimitDelaySeconds.Observe(duration.Seconds())
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
