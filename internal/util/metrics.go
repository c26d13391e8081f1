package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IssuesAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_issues_accepted_total",
		Help: "Total number of accepted issue transactions",
	})

	IssuesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_issues_rejected_total",
		Help: "Total number of rejected issue attempts",
	}, []string{"reason"})

	InwardsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_inwards_accepted_total",
		Help: "Total number of accepted inward transactions",
	})

	InwardsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_inwards_rejected_total",
		Help: "Total number of rejected inward attempts",
	}, []string{"reason"})

	ItemLockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_item_lock_wait_seconds",
		Help:    "Time spent waiting to acquire the per-item row lock",
		Buckets: prometheus.DefBuckets,
	})

	ReorderAlertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reorder_alerts_published_total",
		Help: "Total number of reorder alerts published",
	})

	ReorderAlertsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reorder_alerts_delivered_total",
		Help: "Total number of reorder alerts handed to the notifier",
	})

	AuditFailureWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_audit_failure_write_errors_total",
		Help: "Total number of failure audit entries that could not be persisted",
	})

	StockReportCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stock_report_cache_hits_total",
		Help: "Total number of stock report reads served from cache",
	})

	StockReportCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stock_report_cache_misses_total",
		Help: "Total number of stock report reads recomputed from the ledger",
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
