// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package fault

import (
	"sync"

	"github.com/hellblazer/luciferase/internal/clock"
	"github.com/hellblazer/luciferase/pkg/log"
)

// Listener is notified of every Detector state transition.
type Listener func(PartitionChangeEvent)

// Config holds the thresholds that drive a Detector's transitions.
type Config struct {
	// FailureConfirmationMs is how long a partition must remain SUSPECTED
	// before check_timeouts() confirms it FAILED.
	FailureConfirmationMs int64
	// BarrierTimeoutThreshold / SyncFailureThreshold are the consecutive
	// counts that push HEALTHY -> SUSPECTED.
	BarrierTimeoutThreshold int
	SyncFailureThreshold    int
}

// DefaultConfig mirrors pkg/schema.Default()'s forest-wide defaults.
func DefaultConfig() Config {
	return Config{
		FailureConfirmationMs:   1000,
		BarrierTimeoutThreshold: 2,
		SyncFailureThreshold:    2,
	}
}

// Detector is one partition's fault-detection state machine.
type Detector struct {
	mu    sync.Mutex
	rank  uint32
	cfg   Config
	clock clock.TimeSource

	status         Status
	suspectedAt    int64
	detectionStart int64

	consecutiveBarrierTimeouts int
	consecutiveSyncFailures    int

	listenersMu sync.Mutex
	listeners   []Listener
}

// NewDetector returns a HEALTHY Detector for rank.
func NewDetector(rank uint32, cfg Config, ts clock.TimeSource) *Detector {
	return &Detector{rank: rank, cfg: cfg, clock: ts, status: Healthy}
}

// AddListener registers l to receive every future transition. Registration
// is copy-on-write so concurrent notifications see a stable snapshot.
func (d *Detector) AddListener(l Listener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	next := make([]Listener, len(d.listeners)+1)
	copy(next, d.listeners)
	next[len(d.listeners)] = l
	d.listeners = next
}

// Status returns the current state.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// RecordBarrierTimeout records a failed pause-barrier round, possibly
// tripping HEALTHY -> SUSPECTED.
func (d *Detector) RecordBarrierTimeout() {
	d.mu.Lock()
	d.consecutiveBarrierTimeouts++
	trip := d.consecutiveBarrierTimeouts >= d.cfg.BarrierTimeoutThreshold
	d.mu.Unlock()
	if trip {
		d.suspect("consecutive barrier timeouts")
	}
}

// RecordSyncFailure records a failed ghost sync round, possibly tripping
// HEALTHY -> SUSPECTED.
func (d *Detector) RecordSyncFailure() {
	d.mu.Lock()
	d.consecutiveSyncFailures++
	trip := d.consecutiveSyncFailures >= d.cfg.SyncFailureThreshold
	d.mu.Unlock()
	if trip {
		d.suspect("consecutive sync failures")
	}
}

// RecordHeartbeat reports the current heartbeat sample across the
// partition's nodes, tripping HEALTHY -> SUSPECTED when a majority have
// failed to heartbeat.
func (d *Detector) RecordHeartbeat(failedNodes, totalNodes int) {
	if totalNodes <= 0 {
		return
	}
	if failedNodes > totalNodes/2 {
		d.suspect("majority of partition's nodes failed heartbeat")
	} else {
		d.MarkHealthy("heartbeat recovered")
	}
}

func (d *Detector) suspect(reason string) {
	d.mu.Lock()
	if d.status != Healthy {
		d.mu.Unlock()
		return
	}
	now := d.clock.NowMillis()
	old := d.status
	d.status = Suspected
	d.suspectedAt = now
	d.detectionStart = now
	d.mu.Unlock()
	d.notify(old, Suspected, now, reason)
}

// MarkHealthy records a success event. From SUSPECTED it returns the
// partition to HEALTHY and resets the consecutive-failure counters.
func (d *Detector) MarkHealthy(reason string) {
	d.mu.Lock()
	if d.status != Suspected {
		d.mu.Unlock()
		return
	}
	now := d.clock.NowMillis()
	old := d.status
	d.status = Healthy
	d.consecutiveBarrierTimeouts = 0
	d.consecutiveSyncFailures = 0
	d.mu.Unlock()
	d.notify(old, Healthy, now, reason)
}

// CheckTimeouts is invoked periodically (by a gocron-scheduled sweep); it
// confirms SUSPECTED -> FAILED once failureConfirmationMs has elapsed
// since suspicion began.
func (d *Detector) CheckTimeouts() {
	d.mu.Lock()
	if d.status != Suspected {
		d.mu.Unlock()
		return
	}
	now := d.clock.NowMillis()
	if now-d.suspectedAt < d.cfg.FailureConfirmationMs {
		d.mu.Unlock()
		return
	}
	old := d.status
	d.status = Failed
	d.mu.Unlock()
	d.notify(old, Failed, now, "failure confirmation timeout elapsed")
}

// BeginRecovery transitions FAILED -> RECOVERING. The caller is expected to
// have already acquired the partition's recovery semaphore; BeginRecovery
// itself only updates fault-detection state.
func (d *Detector) BeginRecovery() bool {
	d.mu.Lock()
	if d.status != Failed {
		d.mu.Unlock()
		return false
	}
	now := d.clock.NowMillis()
	old := d.status
	d.status = Recovering
	d.mu.Unlock()
	d.notify(old, Recovering, now, "recovery initiated")
	return true
}

// NotifyRecoveryComplete records the outcome of a recovery attempt:
// RECOVERING -> HEALTHY on success, RECOVERING -> FAILED on failure (the
// caller gates retries against max_retries).
func (d *Detector) NotifyRecoveryComplete(success bool) {
	d.mu.Lock()
	if d.status != Recovering {
		d.mu.Unlock()
		return
	}
	now := d.clock.NowMillis()
	old := d.status
	if success {
		d.status = Healthy
		d.consecutiveBarrierTimeouts = 0
		d.consecutiveSyncFailures = 0
	} else {
		d.status = Failed
	}
	next := d.status
	d.mu.Unlock()

	reason := "recovery succeeded"
	if !success {
		reason = "recovery failed"
	}
	d.notify(old, next, now, reason)
}

func (d *Detector) notify(old, next Status, now int64, reason string) {
	d.listenersMu.Lock()
	snapshot := d.listeners
	d.listenersMu.Unlock()

	event := PartitionChangeEvent{PartitionID: d.rank, Old: old, New: next, TimestampMs: now, Reason: reason}
	for _, l := range snapshot {
		d.safeInvoke(l, event)
	}
}

func (d *Detector) safeInvoke(l Listener, event PartitionChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("fault: listener panicked handling %s->%s for partition %d: %v",
				event.Old, event.New, event.PartitionID, r)
		}
	}()
	l(event)
}
