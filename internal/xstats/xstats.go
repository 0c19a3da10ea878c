// Package xstats holds the Prometheus metrics the aggregator exposes
// on /metrics. This is ambient observability, not the spec's Top-K
// sample statistics (see package xk for those).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xstats

import "github.com/prometheus/client_golang/prometheus"

var (
	ActiveConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "xltop",
		Subsystem: "agg",
		Name:      "active_connections",
		Help:      "Number of live agent connections held by the aggregator.",
	})

	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xltop",
		Subsystem: "agg",
		Name:      "dispatch_total",
		Help:      "Control frames dispatched, labeled by control name and resulting error kind.",
	}, []string{"ctl", "kind"})

	RefreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xltop",
		Subsystem: "agg",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of a cluster or filesystem refresh cycle.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	TopQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "xltop",
		Subsystem: "agg",
		Name:      "top_query_duration_seconds",
		Help:      "Duration of a /top query.",
		Buckets:   prometheus.DefBuckets,
	})

	TopQueryResultLen = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "xltop",
		Subsystem: "agg",
		Name:      "top_query_result_length",
		Help:      "Number of rows returned by a /top query.",
		Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 4096},
	})
)

func init() {
	prometheus.MustRegister(ActiveConns, DispatchTotal, RefreshDuration, TopQueryDuration, TopQueryResultLen)
}
