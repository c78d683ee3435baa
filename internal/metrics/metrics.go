package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsTotal counts deposits by result
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_deposits_total",
			Help: "Total number of deposit attempts",
		},
		[]string{"result"},
	)

	// WithdrawalsTotal counts withdrawal state transitions by stage and result
	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_withdrawals_total",
			Help: "Total number of withdrawal state transitions",
		},
		[]string{"stage", "result"},
	)

	// PendingWithdrawals tracks withdrawals submitted but not yet executed
	PendingWithdrawals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_pending_withdrawals",
			Help: "Number of withdrawals awaiting execution",
		},
	)

	// GuardRejections counts guard-chain rejections by action class
	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_guard_rejections_total",
			Help: "Total number of guard-chain rejections",
		},
		[]string{"action"},
	)

	// FeesCollected tracks fee amounts per deposit
	FeesCollected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_fee_amount",
			Help:    "Fee amount collected per deposit, in base units",
			Buckets: prometheus.ExponentialBuckets(1, 10, 12),
		},
	)

	// CustodyFailures counts custody calls that failed or broke integrity checks
	CustodyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_custody_failures_total",
			Help: "Total number of failed custody calls",
		},
		[]string{"operation"},
	)

	// TipsPaid counts operator gas-tip payouts
	TipsPaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_tips_paid_total",
			Help: "Total number of operator gas tips paid out",
		},
	)
)
