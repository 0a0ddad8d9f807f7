// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package forest

import (
	"github.com/google/uuid"

	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/spatialindex"
)

// Partition is one rank's share of the forest: a spatial index over its
// owned region plus a ghost manager replicating its neighbors' boundary
// nodes.
type Partition struct {
	ID     uuid.UUID
	Rank   uint32
	Index  *spatialindex.Index
	Ghosts *ghost.Manager

	// Neighbors lists the ranks whose domain abuts this partition's,
	// consulted by the ghost Validator's boundary-gap check.
	Neighbors []uint32
}

// NewPartition constructs a Partition with a fresh spatial index and ghost
// manager. transport is wired into the ghost manager for sync RPCs.
func NewPartition(id uuid.UUID, rank uint32, cfg spatialindex.Config, transport ghost.PeerTransport) *Partition {
	return &Partition{
		ID:     id,
		Rank:   rank,
		Index:  spatialindex.New(cfg),
		Ghosts: ghost.NewManager(rank, transport),
	}
}
