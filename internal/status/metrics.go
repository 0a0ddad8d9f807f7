// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package status

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hellblazer/luciferase/internal/fault"
)

// prometheusRegistry is a thin alias so callers of Monitor.Registry don't
// need to import prometheus directly just to pass it to promhttp.
type prometheusRegistry = prometheus.Registry

// prometheusMetrics owns one private registry (never the global default,
// so multiple Monitors - e.g. in tests - don't collide) plus the gauges
// and counters the status tracker maintains.
type prometheusMetrics struct {
	registry          *prometheus.Registry
	partitionStatus   *prometheus.GaugeVec
	recoveryTotal     *prometheus.CounterVec
	recoveryDurations *prometheus.HistogramVec
}

func newPrometheusMetrics() *prometheusMetrics {
	reg := prometheus.NewRegistry()
	m := &prometheusMetrics{
		registry: reg,
		partitionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "luciferase",
			Subsystem: "forest",
			Name:      "partition_status",
			Help:      "Current fault.Status of a partition (0=healthy,1=suspected,2=failed,3=recovering,4=degraded).",
		}, []string{"partition"}),
		recoveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luciferase",
			Subsystem: "recovery",
			Name:      "attempts_total",
			Help:      "Count of completed recovery attempts by outcome.",
		}, []string{"partition", "outcome"}),
		recoveryDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "luciferase",
			Subsystem: "recovery",
			Name:      "duration_ms",
			Help:      "Recovery attempt duration in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"partition"}),
	}
	reg.MustRegister(m.partitionStatus, m.recoveryTotal, m.recoveryDurations)
	return m
}

func (m *prometheusMetrics) setPartitionStatus(rank uint32, s fault.Status) {
	m.partitionStatus.WithLabelValues(strconv.FormatUint(uint64(rank), 10)).Set(float64(statusCode(s)))
}

func statusCode(s fault.Status) int {
	switch s {
	case fault.Healthy:
		return 0
	case fault.Suspected:
		return 1
	case fault.Failed:
		return 2
	case fault.Recovering:
		return 3
	case fault.Degraded:
		return 4
	default:
		return -1
	}
}

func (m *prometheusMetrics) observeRecovery(rank uint32, success bool, durationMs int64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	partition := strconv.FormatUint(uint64(rank), 10)
	m.recoveryTotal.WithLabelValues(partition, outcome).Inc()
	m.recoveryDurations.WithLabelValues(partition).Observe(float64(durationMs))
}
