package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status_code"},
	)
)

var (
	BidsPlacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_placed_total",
			Help: "Total number of accepted bids",
		},
	)

	BidsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_rejected_total",
			Help: "Total number of rejected bids",
		},
		[]string{"reason"},
	)

	AuctionsExtendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auctions_extended_total",
			Help: "Total number of soft-close auction extensions",
		},
	)

	SettlementsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_created_total",
			Help: "Total number of transactions created by settlement",
		},
	)

	SettlementsExistingTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_existing_total",
			Help: "Total number of settlement attempts resolved to an existing transaction",
		},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total number of expiration sweep runs",
		},
	)

	SweepItemsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_items_expired_total",
			Help: "Total number of auctions expired without bids",
		},
	)

	EscrowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Total number of escrow lifecycle transitions",
		},
		[]string{"to_status"},
	)

	OutboxDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dispatched_total",
			Help: "Total number of notification events dispatched to the broker",
		},
	)

	OutboxDispatchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_failures_total",
			Help: "Total number of failed notification dispatch attempts",
		},
	)
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

var (
	RedisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Duration of Redis commands in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"command"},
	)

	RedisLockAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_attempts_total",
			Help: "Total number of distributed lock attempts",
		},
		[]string{"lock_type"},
	)

	RedisLockSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_success_total",
			Help: "Total number of successful lock acquisitions",
		},
		[]string{"lock_type"},
	)

	RedisLockFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_failure_total",
			Help: "Total number of failed lock acquisitions",
		},
		[]string{"lock_type", "reason"},
	)
)

func TimeDBQuery(queryType, table string) func() {
	start := time.Now()
	return func() {
		duration := time.Since(start).Seconds()
		DBQueryDuration.WithLabelValues(queryType, table).Observe(duration)
	}
}

func RecordBidPlaced() {
	BidsPlacedTotal.Inc()
}

func RecordBidRejected(reason string) {
	BidsRejectedTotal.WithLabelValues(reason).Inc()
}

func RecordAuctionExtended() {
	AuctionsExtendedTotal.Inc()
}

func RecordSettlement(alreadySettled bool) {
	if alreadySettled {
		SettlementsExistingTotal.Inc()
	} else {
		SettlementsCreatedTotal.Inc()
	}
}

func RecordEscrowTransition(toStatus string) {
	EscrowTransitionsTotal.WithLabelValues(toStatus).Inc()
}

func RecordLockAttempt(lockType string) {
	RedisLockAttemptsTotal.WithLabelValues(lockType).Inc()
}

func RecordLockSuccess(lockType string) {
	RedisLockSuccessTotal.WithLabelValues(lockType).Inc()
}

func RecordLockFailure(lockType, reason string) {
	RedisLockFailureTotal.WithLabelValues(lockType, reason).Inc()
}
