package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mint_dashboard_refresh_total",
			Help: "Total number of mint state refreshes",
		},
		[]string{"status"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mint_dashboard_refresh_duration_seconds",
			Help:    "Duration of mint state refreshes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	ClaimTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mint_dashboard_claim_total",
			Help: "Total number of claim calls",
		},
		[]string{"action", "status"},
	)

	GlobalRank = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mint_dashboard_global_rank",
			Help: "Last global rank observed by a successful refresh",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mint_dashboard_sessions_active",
			Help: "Number of connected sessions",
		},
	)
)
