// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package recovery

import (
	"sync"
	"time"

	"github.com/hellblazer/luciferase/internal/xerrors"
)

// Barrier tracks a partition's in-flight operation count and lets the
// orchestrator pause new operations and wait for the current ones to
// drain before proceeding into a phase that requires exclusivity.
type Barrier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	active int
	paused bool
}

// NewBarrier returns an unpaused Barrier.
func NewBarrier() *Barrier {
	b := &Barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// TryBeginOperation registers one in-flight operation, returning false if
// the barrier is currently paused.
func (b *Barrier) TryBeginOperation() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		return false
	}
	b.active++
	return true
}

// EndOperation retires one in-flight operation begun by TryBeginOperation.
func (b *Barrier) EndOperation() {
	b.mu.Lock()
	if b.active > 0 {
		b.active--
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// PauseAndWait blocks new operations and waits for the active count to
// reach zero, returning xerrors.ErrBarrierTimeout if timeout elapses
// first. The barrier stays paused on timeout; the caller decides whether
// to retry or abort.
func (b *Barrier) PauseAndWait(timeout time.Duration) error {
	b.mu.Lock()
	b.paused = true

	timedOut := false
	stop := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		b.mu.Lock()
		timedOut = true
		b.mu.Unlock()
		b.cond.Broadcast()
	})
	defer func() {
		timer.Stop()
		close(stop)
	}()

	for b.active > 0 && !timedOut {
		b.cond.Wait()
	}
	active, to := b.active, timedOut
	b.mu.Unlock()

	if to && active > 0 {
		return xerrors.ErrBarrierTimeout
	}
	return nil
}

// Resume unpauses the barrier, allowing new operations to begin.
func (b *Barrier) Resume() {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Paused reports whether the barrier currently rejects new operations.
func (b *Barrier) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}
