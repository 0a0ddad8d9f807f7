// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package forest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/spatialindex"
	"github.com/hellblazer/luciferase/internal/xerrors"
)

// Forest owns a Topology and the set of partitions it currently hosts
// locally. A real deployment runs one Forest per process; each process
// hosts a subset of ranks and relies on PeerTransport to reach the rest.
type Forest struct {
	mu         sync.RWMutex
	topology   *Topology
	partitions map[uint32]*Partition
	cfg        spatialindex.Config
	transport  ghost.PeerTransport
}

// New returns an empty Forest. cfg seeds every partition's spatial index;
// transport is shared by every partition's ghost Manager.
func New(cfg spatialindex.Config, transport ghost.PeerTransport) *Forest {
	return &Forest{
		topology:   NewTopology(),
		partitions: make(map[uint32]*Partition),
		cfg:        cfg,
		transport:  transport,
	}
}

// Topology exposes the Forest's partition topology.
func (f *Forest) Topology() *Topology {
	return f.topology
}

// AddPartition registers a new local partition at rank, bound to id, with
// the given set of abutting neighbor ranks.
func (f *Forest) AddPartition(id uuid.UUID, rank uint32, neighbors []uint32) (*Partition, error) {
	if err := f.topology.Register(id, rank); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.partitions[rank]; ok {
		p.Neighbors = neighbors
		return p, nil
	}
	p := NewPartition(id, rank, f.cfg, f.transport)
	p.Neighbors = neighbors
	f.partitions[rank] = p
	return p, nil
}

// Partition returns the locally hosted partition for rank.
func (f *Forest) Partition(rank uint32) (*Partition, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.partitions[rank]
	if !ok {
		return nil, xerrors.ErrUnknownPartition
	}
	return p, nil
}

// RemovePartition drops rank from the active topology and deletes its
// ghost entries from every remaining local partition, per spec.md §4.5
// step 5 ("Ghost entries belonging to the failed rank are dropped").
func (f *Forest) RemovePartition(rank uint32) {
	f.topology.Deregister(rank)

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.partitions, rank)
	for _, p := range f.partitions {
		p.Ghosts.Set().Remove(rank)
	}
}

// Ranks returns every locally hosted rank.
func (f *Forest) Ranks() []uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]uint32, 0, len(f.partitions))
	for r := range f.partitions {
		out = append(out, r)
	}
	return out
}

// ValidationSnapshot assembles a ghost.ValidationInput from the Forest's
// current topology and partitions, for the recovery orchestrator's
// VALIDATING phase (spec.md §4.5 step 7).
func (f *Forest) ValidationSnapshot() ghost.ValidationInput {
	f.mu.RLock()
	defer f.mu.RUnlock()

	in := ghost.ValidationInput{
		ActiveRanks:           f.topology.ActiveRanks(),
		AuthoritativeEntities: make(map[uint32]map[uint64]struct{}, len(f.partitions)),
		Ghosts:                make(map[uint32]*ghost.Set, len(f.partitions)),
		Adjacency:             make(map[uint32][]uint32, len(f.partitions)),
	}
	for rank, p := range f.partitions {
		ids := make(map[uint64]struct{})
		for _, id := range p.Index.EntityIDs() {
			ids[uint64(id)] = struct{}{}
		}
		in.AuthoritativeEntities[rank] = ids
		in.Ghosts[rank] = p.Ghosts.Set()
		in.Adjacency[rank] = p.Neighbors
	}
	return in
}

// SyncAll drives a ghost sync round for every local partition against its
// configured neighbors.
func (f *Forest) SyncAll(ctx context.Context) {
	f.mu.RLock()
	parts := make([]*Partition, 0, len(f.partitions))
	for _, p := range f.partitions {
		parts = append(parts, p)
	}
	f.mu.RUnlock()

	for _, p := range parts {
		p.Ghosts.Sync(ctx, p.Neighbors)
	}
}
