// Package metrics exposes Prometheus counters and gauges for the points
// ledger service.
//
// PURPOSE:
// Centralizes every metric the service emits so handler and engine code can
// increment them without owning registration. All metrics register on the
// default registry via promauto and are served on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "baseapp"

// ClaimsTotal counts successful activity claims by activity ID.
var ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "claims_total",
	Help:      "Total successful activity claims.",
}, []string{"activity"})

// ClaimsRejected counts rejected claims by reason (unknown, not_eligible, storage).
var ClaimsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "claims_rejected_total",
	Help:      "Total rejected activity claims by reason.",
}, []string{"reason"})

// RedemptionsTotal counts successful reward redemptions by reward ID.
var RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "redemptions_total",
	Help:      "Total successful reward redemptions.",
}, []string{"reward"})

// RedemptionsRejected counts rejected redemptions by reason
// (unknown, insufficient_points, storage).
var RedemptionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "redemptions_rejected_total",
	Help:      "Total rejected reward redemptions by reason.",
}, []string{"reason"})

// PointsIssued counts total points credited through claims.
var PointsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "points_issued_total",
	Help:      "Total points credited to accounts.",
})

// PointsSpent counts total points debited through redemptions.
var PointsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "points_spent_total",
	Help:      "Total points spent on rewards.",
})

// LeaderboardRefreshes counts leaderboard cache rebuilds.
var LeaderboardRefreshes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ranking",
	Name:      "leaderboard_refreshes_total",
	Help:      "Total leaderboard cache rebuilds from the store.",
})

// WeeklyResets counts completed weekly score resets.
var WeeklyResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ranking",
	Name:      "weekly_resets_total",
	Help:      "Total weekly score resets performed.",
})

// HTTPRequestDuration tracks request latency by route and status class.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status class.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"route", "status"})
