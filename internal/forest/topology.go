// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package forest owns the partition topology and wires each partition's
// spatial index to its ghost layer: a Forest owns N partitions, each
// holding a *spatialindex.Index and a *ghost.Manager replicating its
// boundary nodes from neighboring ranks.
package forest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hellblazer/luciferase/internal/xerrors"
)

// Topology is the bidirectional UUID<->rank map spec.md §3 names
// (`PartitionTopology`), versioned monotonically on every mutation.
// Re-registering the same (id, rank) pair is a no-op; registering a
// different id for an already-claimed rank fails.
type Topology struct {
	mu       sync.RWMutex
	idToRank map[uuid.UUID]uint32
	rankToID map[uint32]uuid.UUID
	active   map[uint32]struct{}
	version  uint64
}

// NewTopology returns an empty Topology at version 0.
func NewTopology() *Topology {
	return &Topology{
		idToRank: make(map[uuid.UUID]uint32),
		rankToID: make(map[uint32]uuid.UUID),
		active:   make(map[uint32]struct{}),
	}
}

// Register binds id to rank, marking rank active. Re-registering the same
// pair while rank is active is a no-op (no version bump); re-registering it
// after Deregister reactivates rank and bumps the version. Registering rank
// with a different id
// than it already holds fails with xerrors.ErrTopologyInconsistent.
func (t *Topology) Register(id uuid.UUID, rank uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.rankToID[rank]; ok {
		if existing == id {
			if _, ok := t.active[rank]; !ok {
				t.active[rank] = struct{}{}
				t.version++
			}
			return nil
		}
		return fmt.Errorf("forest: rank %d already claimed by %s: %w", rank, existing, xerrors.ErrTopologyInconsistent)
	}
	if existingRank, ok := t.idToRank[id]; ok && existingRank != rank {
		return fmt.Errorf("forest: partition %s already bound to rank %d: %w", id, existingRank, xerrors.ErrTopologyInconsistent)
	}

	t.idToRank[id] = rank
	t.rankToID[rank] = id
	t.active[rank] = struct{}{}
	t.version++
	return nil
}

// Deregister removes rank from the active set without forgetting its UUID
// binding, so a later Register with the same id is still idempotent.
func (t *Topology) Deregister(rank uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[rank]; ok {
		delete(t.active, rank)
		t.version++
	}
}

// RankOf returns the rank bound to id.
func (t *Topology) RankOf(id uuid.UUID) (uint32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rank, ok := t.idToRank[id]
	if !ok {
		return 0, xerrors.ErrUnknownPartition
	}
	return rank, nil
}

// IDOf returns the UUID bound to rank.
func (t *Topology) IDOf(rank uint32) (uuid.UUID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.rankToID[rank]
	if !ok {
		return uuid.UUID{}, xerrors.ErrUnknownPartition
	}
	return id, nil
}

// IsActive reports whether rank is currently in the active set.
func (t *Topology) IsActive(rank uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.active[rank]
	return ok
}

// ActiveRanks returns a snapshot of the active rank set.
func (t *Topology) ActiveRanks() map[uint32]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[uint32]struct{}, len(t.active))
	for r := range t.active {
		out[r] = struct{}{}
	}
	return out
}

// Version returns the current monotonic version counter.
func (t *Topology) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}
