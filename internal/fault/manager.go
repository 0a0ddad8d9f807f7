// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package fault

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/hellblazer/luciferase/internal/clock"
	"github.com/hellblazer/luciferase/pkg/log"
)

// Manager owns one Detector per locally hosted partition and periodically
// sweeps check_timeouts() across all of them via a gocron scheduler,
// the same DurationJob pattern the teacher uses for its background
// workers.
type Manager struct {
	mu        sync.RWMutex
	detectors map[uint32]*Detector
	cfg       Config
	clock     clock.TimeSource
	scheduler gocron.Scheduler
}

// NewManager returns a Manager with no detectors registered yet.
func NewManager(cfg Config, ts clock.TimeSource) *Manager {
	return &Manager{detectors: make(map[uint32]*Detector), cfg: cfg, clock: ts}
}

// Detector returns (creating if necessary) the Detector for rank.
func (m *Manager) Detector(rank uint32) *Detector {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.detectors[rank]
	if !ok {
		d = NewDetector(rank, m.cfg, m.clock)
		m.detectors[rank] = d
	}
	return d
}

// Remove drops a partition's detector, e.g. once recovery has fully
// retired the rank.
func (m *Manager) Remove(rank uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.detectors, rank)
}

// CheckAll invokes CheckTimeouts on every registered detector.
func (m *Manager) CheckAll() {
	m.mu.RLock()
	detectors := make([]*Detector, 0, len(m.detectors))
	for _, d := range m.detectors {
		detectors = append(detectors, d)
	}
	m.mu.RUnlock()

	for _, d := range detectors {
		d.CheckTimeouts()
	}
}

// StartSweep launches a gocron DurationJob that invokes CheckAll every
// interval, returning a Shutdown func that stops the scheduler.
func (m *Manager) StartSweep(interval time.Duration) (shutdown func(), err error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	m.scheduler = s

	if _, err := s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		m.CheckAll()
	})); err != nil {
		return nil, err
	}

	s.Start()
	log.Infof("fault: check_timeouts sweep started at %s interval", interval)

	return func() {
		if shutErr := s.Shutdown(); shutErr != nil {
			log.Warnf("fault: scheduler shutdown: %v", shutErr)
		}
	}, nil
}
