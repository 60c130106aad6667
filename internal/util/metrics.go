package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medtrack_syncs_total",
		Help: "Total number of transaction sync runs",
	})

	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medtrack_sync_failures_total",
		Help: "Total number of failed merchant sync attempts",
	}, []string{"source"})

	TransactionsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medtrack_transactions_fetched_total",
		Help: "Total number of raw transactions fetched from sources",
	})

	MalformedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medtrack_malformed_items_total",
		Help: "Total number of transaction items skipped as malformed",
	})

	SnapshotsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medtrack_snapshots_generated_total",
		Help: "Total number of insight snapshots generated",
	})

	SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medtrack_snapshot_latency_seconds",
		Help:    "Latency of snapshot generation",
		Buckets: prometheus.DefBuckets,
	})

	AlertsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medtrack_alerts_emitted_total",
		Help: "Total number of alerts emitted in snapshots",
	}, []string{"category", "severity"})

	ReferenceFetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medtrack_reference_fetch_failures_total",
		Help: "Total number of failed reference price table fetches",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
