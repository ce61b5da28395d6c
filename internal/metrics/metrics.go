// Package metrics holds the Prometheus collectors for catalog requests and reconciliation passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "strmsync"

// Request outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeStatus = "bad_status"
	OutcomeError  = "error"
	OutcomeDecode = "decode_error"
)

// Item results.
const (
	ResultAdded   = "added"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_requests_total",
		Help:      "Catalog API requests by action and outcome.",
	}, []string{"action", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "catalog_request_duration_seconds",
		Help:      "Catalog API request latency by action.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	Items = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_total",
		Help:      "Catalog items processed by domain and result.",
	}, []string{"domain", "result"})

	Passes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "passes_total",
		Help:      "Reconciliation passes by outcome (completed, skipped).",
	}, []string{"outcome"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Wall time of completed reconciliation passes.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	LastPass = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix time the last reconciliation pass finished.",
	})

	HistorySize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_items",
		Help:      "Identifiers recorded in the history document by domain.",
	}, []string{"domain"})
)

// ObserveRequest records one catalog request.
func ObserveRequest(action, outcome string, elapsed time.Duration) {
	Requests.WithLabelValues(action, outcome).Inc()
	RequestDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObservePass records a finished pass.
func ObservePass(started, finished time.Time) {
	Passes.WithLabelValues("completed").Inc()
	PassDuration.Observe(finished.Sub(started).Seconds())
	LastPass.Set(float64(finished.Unix()))
}
