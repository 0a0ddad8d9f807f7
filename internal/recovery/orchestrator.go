// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hellblazer/luciferase/internal/fault"
	"github.com/hellblazer/luciferase/internal/forest"
	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/xerrors"
	"github.com/hellblazer/luciferase/pkg/log"
)

// Distributor transfers ownership of failedRank's keys to survivors
// (spec.md §4.5 step 5, "spatial proximity preferred").
type Distributor interface {
	Redistribute(ctx context.Context, f *forest.Forest, failedRank uint32) error
}

// Balancer invokes the cross-partition 2:1 balance protocol as part of
// REBALANCING (spec.md §4.5 step 6).
type Balancer interface {
	Rebalance(ctx context.Context, f *forest.Forest, rank uint32) error
}

// ProbeFunc cross-checks a suspected-failed rank during DETECTING; it
// reports true if the partition actually answered healthy, in which case
// recovery aborts back to IDLE without redistributing anything. A nil
// ProbeFunc is treated as "never responds", i.e. failure is always
// confirmed.
type ProbeFunc func(ctx context.Context, rank uint32) (healthy bool, err error)

// AlertFunc escalates a permanent quorum loss or recovery failure to
// operators (spec.md §4.5 step 1).
type AlertFunc func(reason string)

// Config holds the orchestrator's tunables.
type Config struct {
	MaxRetries     int
	BarrierTimeout time.Duration
	// RetryInterval paces successive recovery attempts for the same
	// partition via a token-bucket limiter instead of ad-hoc time.Sleep
	// backoff; one token is minted every RetryInterval.
	RetryInterval time.Duration
}

// Orchestrator drives the recovery phase machine for a Forest's
// partitions.
type Orchestrator struct {
	mu         sync.Mutex
	states     map[uint32]*State
	semaphores map[uint32]*sync.Mutex
	barriers   map[uint32]*Barrier
	cancels    map[uint32]context.CancelFunc
	limiters   map[uint32]*rate.Limiter

	forest      *forest.Forest
	faults      *fault.Manager
	distributor Distributor
	balancer    Balancer
	probe       ProbeFunc
	validator   *ghost.Validator
	alert       AlertFunc
	cfg         Config
}

// New returns an Orchestrator wired to f and faults. distributor,
// balancer, probe and alert may be nil: a nil distributor or balancer
// skips that step, a nil probe confirms every failure, and a nil alert is
// never called.
func New(cfg Config, f *forest.Forest, faults *fault.Manager, distributor Distributor, balancer Balancer, probe ProbeFunc, alert AlertFunc) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BarrierTimeout <= 0 {
		cfg.BarrierTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	return &Orchestrator{
		states:      make(map[uint32]*State),
		semaphores:  make(map[uint32]*sync.Mutex),
		barriers:    make(map[uint32]*Barrier),
		cancels:     make(map[uint32]context.CancelFunc),
		limiters:    make(map[uint32]*rate.Limiter),
		forest:      f,
		faults:      faults,
		distributor: distributor,
		balancer:    balancer,
		probe:       probe,
		validator:   ghost.NewValidator(),
		alert:       alert,
		cfg:         cfg,
	}
}

// State returns a copy of rank's current recovery state.
func (o *Orchestrator) State(rank uint32) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.stateLocked(rank)
}

func (o *Orchestrator) stateLocked(rank uint32) *State {
	s, ok := o.states[rank]
	if !ok {
		s = &State{PartitionID: rank, Phase: Idle, Metadata: make(map[string]any)}
		o.states[rank] = s
	}
	return s
}

func (o *Orchestrator) semaphoreFor(rank uint32) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.semaphores[rank]
	if !ok {
		s = &sync.Mutex{}
		o.semaphores[rank] = s
	}
	return s
}

// Barrier returns rank's operation pause barrier, creating it if needed.
// Callers in the hot insert/remove/update path call TryBeginOperation/
// EndOperation on it directly.
func (o *Orchestrator) Barrier(rank uint32) *Barrier {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.barriers[rank]
	if !ok {
		b = NewBarrier()
		o.barriers[rank] = b
	}
	return b
}

func (o *Orchestrator) limiterFor(rank uint32) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.limiters[rank]
	if !ok {
		l = rate.NewLimiter(rate.Every(o.cfg.RetryInterval), 1)
		o.limiters[rank] = l
	}
	return l
}

// hasQuorum reports whether strictly more than half the active partitions
// are currently HEALTHY.
func (o *Orchestrator) hasQuorum() bool {
	active := o.forest.Topology().ActiveRanks()
	total := len(active)
	if total == 0 {
		return true
	}
	healthy := 0
	for rank := range active {
		if o.faults.Detector(rank).Status() == fault.Healthy {
			healthy++
		}
	}
	return healthy > total/2
}

// Recover drives rank's recovery to completion or permanent failure,
// retrying with rate-limited pacing until rank's failed-attempt count
// reaches cfg.MaxRetries. ctx cancellation (including via Abort) stops
// retrying.
func (o *Orchestrator) Recover(ctx context.Context, rank uint32) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancels[rank] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, rank)
		o.mu.Unlock()
		cancel()
	}()

	limiter := o.limiterFor(rank)
	state := o.stateLocked(rank)

	for {
		if err := limiter.Wait(runCtx); err != nil {
			return err
		}

		err := o.attempt(runCtx, rank, state)
		if err == nil {
			return nil
		}
		if errors.Is(err, xerrors.ErrRecoveryAborted) {
			o.mu.Lock()
			state.Phase = Failed
			o.mu.Unlock()
			return err
		}

		o.mu.Lock()
		state.Attempts++
		attempts := state.Attempts
		o.mu.Unlock()

		if int(attempts) >= o.cfg.MaxRetries {
			o.mu.Lock()
			state.Phase = Failed
			o.mu.Unlock()
			if o.alert != nil {
				o.alert(fmt.Sprintf("partition %d recovery permanently failed after %d attempts: %v", rank, attempts, err))
			}
			return &xerrors.RecoveryPhaseFailedError{Phase: state.Phase.String(), Cause: err}
		}
		log.Warnf("recovery: partition %d attempt %d failed, retrying: %v", rank, attempts, err)
	}
}

func (o *Orchestrator) attempt(ctx context.Context, rank uint32, state *State) error {
	if !o.hasQuorum() {
		if o.alert != nil {
			o.alert(fmt.Sprintf("partition %d recovery deferred: insufficient quorum", rank))
		}
		return xerrors.ErrNoQuorum
	}

	sem := o.semaphoreFor(rank)
	if !sem.TryLock() {
		return xerrors.ErrRecoveryInProgress
	}
	defer sem.Unlock()

	barrier := o.Barrier(rank)
	if err := barrier.PauseAndWait(o.cfg.BarrierTimeout); err != nil {
		return err
	}
	defer barrier.Resume()

	o.mu.Lock()
	state.Phase = Detecting
	o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrRecoveryAborted, err)
	}

	healthy, err := o.confirmFailure(ctx, rank)
	if err != nil {
		return err
	}
	if healthy {
		o.mu.Lock()
		state.Phase = Idle
		o.mu.Unlock()
		return nil
	}

	o.mu.Lock()
	state.Phase = Redistributing
	o.mu.Unlock()
	if o.distributor != nil {
		if err := o.distributor.Redistribute(ctx, o.forest, rank); err != nil {
			return fmt.Errorf("redistribute: %w", err)
		}
	}
	o.forest.RemovePartition(rank)

	o.mu.Lock()
	state.Phase = Rebalancing
	o.mu.Unlock()
	if o.balancer != nil {
		if err := o.balancer.Rebalance(ctx, o.forest, rank); err != nil {
			return fmt.Errorf("rebalance: %w", err)
		}
	}

	o.mu.Lock()
	state.Phase = Validating
	o.mu.Unlock()
	snapshot := o.forest.ValidationSnapshot()
	if err := o.validator.Validate(snapshot); err != nil {
		return err
	}

	o.mu.Lock()
	state.Phase = Complete
	o.mu.Unlock()
	o.faults.Detector(rank).NotifyRecoveryComplete(true)
	return nil
}

func (o *Orchestrator) confirmFailure(ctx context.Context, rank uint32) (healthy bool, err error) {
	if o.probe == nil {
		return false, nil
	}
	return o.probe(ctx, rank)
}

// Abort forces rank's in-flight recovery to FAILED, cancels its context
// (unblocking Recover's retry loop and any ctx-aware waits), force-resumes
// its operation barrier, and logs the reason. It does not roll back
// already-redistributed entities; VALIDATING is responsible for catching
// partial states on the next recovery attempt.
func (o *Orchestrator) Abort(rank uint32, reason string) {
	o.mu.Lock()
	state := o.stateLocked(rank)
	state.Phase = Failed
	cancel := o.cancels[rank]
	barrier := o.barriers[rank]
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if barrier != nil {
		barrier.Resume()
	}
	log.Warnf("recovery: partition %d aborted: %s", rank, reason)
}
