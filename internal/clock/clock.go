// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package clock provides the TimeSource abstraction the fault detector and
// recovery orchestrator use instead of calling time.Now directly, so tests
// can drive failure-detection timelines deterministically.
package clock

import (
	"sync"
	"time"
)

// TimeSource returns the current time as milliseconds since the Unix epoch.
type TimeSource interface {
	NowMillis() int64
}

// SystemTimeSource is the production TimeSource, backed by time.Now.
type SystemTimeSource struct{}

// NowMillis returns time.Now().UnixMilli().
func (SystemTimeSource) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// System is the shared SystemTimeSource instance; most callers can use this
// directly rather than constructing their own.
var System TimeSource = SystemTimeSource{}

// ManualTimeSource is a test double that only advances when told to,
// letting fault-detector and recovery-orchestrator tests assert on exact
// timeout boundaries without sleeping.
type ManualTimeSource struct {
	mu  sync.Mutex
	now int64
}

// NewManualTimeSource returns a ManualTimeSource starting at startMillis.
func NewManualTimeSource(startMillis int64) *ManualTimeSource {
	return &ManualTimeSource{now: startMillis}
}

// NowMillis returns the current simulated time.
func (m *ManualTimeSource) NowMillis() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the simulated clock forward by deltaMillis.
func (m *ManualTimeSource) Advance(deltaMillis int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += deltaMillis
}

// Set pins the simulated clock to an absolute millisecond value.
func (m *ManualTimeSource) Set(millis int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = millis
}
