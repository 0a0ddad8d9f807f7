// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package xerrors centralizes the error taxonomy shared by every forest
// component: the spatial index, the forest topology, the fault detector,
// the recovery orchestrator and the cross-partition balancer.
//
// Every sentinel here is returned directly or wrapped with fmt.Errorf's
// %w verb; callers dispatch with errors.Is/errors.As, never on error
// string content.
package xerrors

import "fmt"

// Spatial index errors.
var (
	ErrEntityNotFound   = fmt.Errorf("entity not found")
	ErrNodeNotFound     = fmt.Errorf("node not found")
	ErrInvalidBounds    = fmt.Errorf("invalid bounds")
	ErrMaxDepthExceeded = fmt.Errorf("maximum refinement level exceeded")
	ErrDuplicateEntity  = fmt.Errorf("entity already present")
)

// Forest / partition topology errors.
var (
	ErrUnknownPartition     = fmt.Errorf("unknown partition")
	ErrPartitionExists      = fmt.Errorf("partition already registered")
	ErrNoLocalPartition     = fmt.Errorf("no partition owns this rank locally")
	ErrTopologyInconsistent = fmt.Errorf("partition topology is inconsistent")
)

// Ghost layer errors.
var (
	ErrGhostNotFound    = fmt.Errorf("ghost element not found")
	ErrGhostStale       = fmt.Errorf("ghost element is stale")
	ErrChecksumMismatch = fmt.Errorf("ghost payload checksum mismatch")
)

// Fault detector errors.
var (
	ErrUnknownTransition = fmt.Errorf("no transition defined for this (state, event) pair")
	ErrAlreadyFailed     = fmt.Errorf("partition already marked failed")
)

// Recovery orchestrator errors.
var (
	ErrRecoveryInProgress = fmt.Errorf("a recovery is already in progress")
	ErrNoQuorum           = fmt.Errorf("insufficient healthy partitions for quorum")
	ErrRecoveryAborted    = fmt.Errorf("recovery was aborted")
	ErrBarrierTimeout     = fmt.Errorf("pause barrier timed out waiting for in-flight operations")
)

// Cross-partition balance errors.
var (
	ErrBalanceRoundFailed = fmt.Errorf("butterfly exchange round failed")
	ErrPeerUnreachable    = fmt.Errorf("balance peer unreachable")
)

// RecoveryPhaseFailedError reports which phase of the recovery orchestrator
// failed and why, wrapping the underlying cause.
type RecoveryPhaseFailedError struct {
	Phase string
	Cause error
}

func (e *RecoveryPhaseFailedError) Error() string {
	return fmt.Sprintf("recovery phase %q failed: %v", e.Phase, e.Cause)
}

func (e *RecoveryPhaseFailedError) Unwrap() error {
	return e.Cause
}

// GhostValidationFailedError reports the three invariant violations the
// ghost layer Validator checks for: duplicate replicas, orphaned replicas
// with no owning partition, and boundary gaps.
type GhostValidationFailedError struct {
	Duplicates int
	Orphans    int
	Gaps       int
}

func (e *GhostValidationFailedError) Error() string {
	return fmt.Sprintf("ghost validation failed: %d duplicate(s), %d orphan(s), %d gap(s)",
		e.Duplicates, e.Orphans, e.Gaps)
}
