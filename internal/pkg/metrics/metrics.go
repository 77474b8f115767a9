// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 预订与履约核心链路的业务指标。
// 按 outcome 维度打标签，便于在看板上直接画出成功率和锁竞争率。
var (
	ReservationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripnexus",
		Subsystem: "reservation",
		Name:      "requests_total",
		Help:      "Reservation requests by outcome (ok/insufficient/lock_busy/error).",
	}, []string{"outcome"})

	LockAcquireDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tripnexus",
		Subsystem: "reservation",
		Name:      "lock_acquire_seconds",
		Help:      "Time spent acquiring the per-date lock set.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	FulfillmentSubItemTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripnexus",
		Subsystem: "fulfillment",
		Name:      "subitems_total",
		Help:      "Processed order sub-items by resource type and outcome.",
	}, []string{"resource_type", "outcome"})

	OptimisticRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tripnexus",
		Subsystem: "fulfillment",
		Name:      "optimistic_retries_total",
		Help:      "Optimistic-lock conflicts that triggered a retry.",
	})

	ExceptionRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripnexus",
		Subsystem: "exception",
		Name:      "raised_total",
		Help:      "Exception records raised by kind.",
	}, []string{"kind"})

	SyncFilteredRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tripnexus",
		Subsystem: "sync",
		Name:      "changed_ratio",
		Help:      "Fraction of a snapshot batch that actually changed.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	ChannelPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripnexus",
		Subsystem: "sync",
		Name:      "channel_pushes_total",
		Help:      "Outbound channel pushes by channel and outcome.",
	}, []string{"channel", "outcome"})
)
