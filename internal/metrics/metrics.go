package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_purchases_total",
			Help: "Ticket purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	purchaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lotto_purchase_duration_ms",
			Help:    "Ticket purchase duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"outcome"},
	)

	allocationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotto_allocation_retries_total",
			Help: "Ticket number reservations retried after contention",
		},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_round_transitions_total",
			Help: "Round status transitions applied",
		},
		[]string{"from", "to"},
	)

	settledPayout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_settled_amount_total",
			Help: "Minor units distributed by settlement, by destination",
		},
		[]string{"kind"},
	)

	refundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_refunds_total",
			Help: "Ticket refunds of voided rounds by result",
		},
		[]string{"result"},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lotto_scheduler_tick_duration_ms",
			Help:    "Scheduler reconciliation pass duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lotto_notify_dropped_total",
			Help: "Notifications dropped because the queue was full",
		},
	)
)

// RecordPurchase observes one Purchase call. outcome is "ok", "duplicate",
// "pending" or an error class.
func RecordPurchase(outcome string, started time.Time) {
	purchaseTotal.WithLabelValues(outcome).Inc()
	purchaseDuration.WithLabelValues(outcome).Observe(float64(time.Since(started).Milliseconds()))
}

func RecordAllocationRetry() { allocationRetries.Inc() }

func RecordTransition(from, to string) { transitionsTotal.WithLabelValues(from, to).Inc() }

func RecordSettlement(firstPrize, consolation, retention int64) {
	settledPayout.WithLabelValues("first").Add(float64(firstPrize))
	settledPayout.WithLabelValues("consolation").Add(float64(consolation))
	settledPayout.WithLabelValues("platform").Add(float64(retention))
}

func RecordRefund(ok bool) {
	res := "ok"
	if !ok {
		res = "fail"
	}

	refundsTotal.WithLabelValues(res).Inc()
}

func RecordTick(started time.Time) {
	tickDuration.Observe(float64(time.Since(started).Milliseconds()))
}

func RecordDropped() { eventsDropped.Inc() }
