// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package status implements the forest-wide status tracker/monitor:
// aggregated health metrics exposed as prometheus instrumentation, a
// rolling transition history for staleness checks, and alert evaluation
// against both fixed thresholds and an optional expr-lang expression
// (spec.md §6 "alert_thresholds").
package status

import (
	"sync"
	"time"

	"github.com/hellblazer/luciferase/internal/clock"
	"github.com/hellblazer/luciferase/internal/fault"
	"github.com/hellblazer/luciferase/pkg/schema"
)

// Snapshot is a point-in-time aggregate over every tracked partition.
type Snapshot struct {
	TimestampMs           int64
	TotalPartitions       int
	HealthyPartitions     int
	SuspectedPartitions   int
	FailedPartitions      int
	RecoveringPartitions  int
	RecoverySuccesses     int64
	RecoveryFailures      int64
	RecoverySuccessRate   float64
	AvgDetectionLatencyMs float64
	AvgRecoveryLatencyMs  float64
}

// Alert is one threshold or expression breach detected on a tick.
type Alert struct {
	Reason string
}

// record is one partition's latest known status and timing history, kept
// for staleness checks and latency averaging.
type record struct {
	status           fault.Status
	lastTransitionMs int64
	detectionLatency float64 // running average, ms
	detectionSamples int64
}

// Monitor aggregates fault transitions and recovery outcomes into a
// Snapshot, exposes them as prometheus metrics, and evaluates alert
// thresholds on demand.
type Monitor struct {
	mu      sync.Mutex
	clock   clock.TimeSource
	records map[uint32]*record

	recoverySuccesses int64
	recoveryFailures  int64
	recoveryLatency   float64 // running average, ms
	recoverySamples   int64

	thresholds schema.AlertThresholds
	evaluator  *expressionEvaluator

	metrics *prometheusMetrics
}

// New returns a Monitor with the given alert thresholds. ts supplies
// timestamps for latency accounting; pass clock.NewSystemTimeSource() in
// production.
func New(thresholds schema.AlertThresholds, ts clock.TimeSource) (*Monitor, error) {
	evaluator, err := newExpressionEvaluator(thresholds.Expression)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		clock:      ts,
		records:    make(map[uint32]*record),
		thresholds: thresholds,
		evaluator:  evaluator,
		metrics:    newPrometheusMetrics(),
	}, nil
}

// Registry exposes the Monitor's private prometheus registry, for a
// caller to serve via an HTTP handler (e.g. promhttp.HandlerFor).
func (m *Monitor) Registry() *prometheusRegistry {
	return m.metrics.registry
}

// OnFaultTransition records a partition status change, feeding both the
// prometheus gauges and the detection-latency average (time from a
// partition leaving HEALTHY to its reaching FAILED).
func (m *Monitor) OnFaultTransition(event fault.PartitionChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[event.PartitionID]
	if !ok {
		r = &record{status: fault.Healthy}
		m.records[event.PartitionID] = r
	}

	if event.Old == fault.Healthy && event.New != fault.Healthy {
		r.lastTransitionMs = event.TimestampMs
	} else if event.New == fault.Failed && r.lastTransitionMs != 0 {
		latency := float64(event.TimestampMs - r.lastTransitionMs)
		r.detectionSamples++
		r.detectionLatency += (latency - r.detectionLatency) / float64(r.detectionSamples)
	}

	r.status = event.New
	m.metrics.setPartitionStatus(event.PartitionID, event.New)
}

// OnRecoveryOutcome records a completed recovery attempt's success/failure
// and duration, feeding the recovery-success-rate and average-latency
// aggregates.
func (m *Monitor) OnRecoveryOutcome(rank uint32, success bool, durationMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.recoverySuccesses++
	} else {
		m.recoveryFailures++
	}
	m.recoverySamples++
	m.recoveryLatency += (float64(durationMs) - m.recoveryLatency) / float64(m.recoverySamples)

	m.metrics.observeRecovery(rank, success, durationMs)
}

// Snapshot computes the current aggregate.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	s := Snapshot{TimestampMs: m.clock.NowMillis()}
	var detectionTotal float64
	var detectionCount int64
	for _, r := range m.records {
		s.TotalPartitions++
		switch r.status {
		case fault.Healthy:
			s.HealthyPartitions++
		case fault.Suspected:
			s.SuspectedPartitions++
		case fault.Failed:
			s.FailedPartitions++
		case fault.Recovering:
			s.RecoveringPartitions++
		}
		if r.detectionSamples > 0 {
			detectionTotal += r.detectionLatency
			detectionCount++
		}
	}
	if detectionCount > 0 {
		s.AvgDetectionLatencyMs = detectionTotal / float64(detectionCount)
	}

	s.RecoverySuccesses = m.recoverySuccesses
	s.RecoveryFailures = m.recoveryFailures
	if total := m.recoverySuccesses + m.recoveryFailures; total > 0 {
		s.RecoverySuccessRate = float64(m.recoverySuccesses) / float64(total)
	} else {
		s.RecoverySuccessRate = 1
	}
	s.AvgRecoveryLatencyMs = m.recoveryLatency
	return s
}

// Evaluate checks the current snapshot against the fixed thresholds and
// the optional expr-lang expression, returning every breach found.
func (m *Monitor) Evaluate() ([]Alert, error) {
	m.mu.Lock()
	snap := m.snapshotLocked()
	thresholds := m.thresholds
	m.mu.Unlock()

	var alerts []Alert
	if snap.TotalPartitions > 0 {
		failedPct := float64(snap.FailedPartitions) / float64(snap.TotalPartitions) * 100
		if thresholds.FailedPartitionPercent > 0 && failedPct > thresholds.FailedPartitionPercent {
			alerts = append(alerts, Alert{Reason: "failed partition percentage exceeds threshold"})
		}
	}
	if thresholds.RecoverySuccessRateFloor > 0 && snap.RecoverySuccessRate < thresholds.RecoverySuccessRateFloor {
		alerts = append(alerts, Alert{Reason: "recovery success rate below floor"})
	}
	if thresholds.DetectionLatencyCeilMs > 0 && snap.AvgDetectionLatencyMs > float64(thresholds.DetectionLatencyCeilMs) {
		alerts = append(alerts, Alert{Reason: "detection latency exceeds ceiling"})
	}
	if thresholds.RecoveryLatencyCeilMs > 0 && snap.AvgRecoveryLatencyMs > float64(thresholds.RecoveryLatencyCeilMs) {
		alerts = append(alerts, Alert{Reason: "recovery latency exceeds ceiling"})
	}

	fired, err := m.evaluator.Run(snap)
	if err != nil {
		return alerts, err
	}
	if fired {
		alerts = append(alerts, Alert{Reason: "custom alert expression triggered"})
	}
	return alerts, nil
}

// Stale reports whether more than maxAge lies between rank's last departure
// from HEALTHY (time 0 if it never left HEALTHY) and nowMs. Other
// transitions do not reset that time. A rank with no recorded transition
// is always stale.
func (m *Monitor) Stale(rank uint32, nowMs int64, maxAge time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[rank]
	if !ok {
		return true
	}
	return nowMs-r.lastTransitionMs > maxAge.Milliseconds()
}
