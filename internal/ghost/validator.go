// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ghost

import (
	"github.com/hellblazer/luciferase/internal/xerrors"
)

// ValidationInput is the snapshot the Validator checks a forest against.
// It is assembled by the recovery orchestrator from the forest topology
// and each partition's ghost Manager; Validator itself has no dependency
// on internal/forest to avoid an import cycle.
type ValidationInput struct {
	// ActiveRanks is the set of ranks the topology currently considers live.
	ActiveRanks map[uint32]struct{}

	// AuthoritativeEntities maps each active rank to the entity ids it owns
	// authoritatively (not as a ghost replica).
	AuthoritativeEntities map[uint32]map[uint64]struct{}

	// Ghosts maps each active rank to the ghost Set it currently holds.
	Ghosts map[uint32]*Set

	// Adjacency maps each active rank to the neighbor ranks whose domain
	// abuts it; a healthy forest has at least one ghost from every listed
	// neighbor that owns at least one entity in that rank's Set.
	Adjacency map[uint32][]uint32
}

// Validator checks the three ghost-layer consistency invariants: no entity
// id is authoritative in two partitions, no ghost replicates a rank outside
// the active set, and no partition is missing a ghost from a neighbor whose
// domain abuts it and which owns at least one entity.
type Validator struct{}

// NewValidator returns a Validator. It holds no state.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks in against all three invariants and returns a
// *xerrors.GhostValidationFailedError if any are violated, nil otherwise.
func (v *Validator) Validate(in ValidationInput) error {
	dups := v.countDuplicates(in)
	orphans := v.countOrphans(in)
	gaps := v.countGaps(in)

	if dups == 0 && orphans == 0 && gaps == 0 {
		return nil
	}
	return &xerrors.GhostValidationFailedError{Duplicates: dups, Orphans: orphans, Gaps: gaps}
}

func (v *Validator) countDuplicates(in ValidationInput) int {
	owner := make(map[uint64]uint32)
	dups := 0
	for rank, ids := range in.AuthoritativeEntities {
		for id := range ids {
			if prev, ok := owner[id]; ok && prev != rank {
				dups++
				continue
			}
			owner[id] = rank
		}
	}
	return dups
}

func (v *Validator) countOrphans(in ValidationInput) int {
	orphans := 0
	for _, set := range in.Ghosts {
		for _, origin := range set.Origins() {
			if _, active := in.ActiveRanks[origin]; !active {
				orphans++
			}
		}
	}
	return orphans
}

func (v *Validator) countGaps(in ValidationInput) int {
	gaps := 0
	for rank := range in.ActiveRanks {
		set, ok := in.Ghosts[rank]
		for _, neighbor := range in.Adjacency[rank] {
			if _, stillActive := in.ActiveRanks[neighbor]; !stillActive {
				continue
			}
			if len(in.AuthoritativeEntities[neighbor]) == 0 {
				continue
			}
			if !ok || len(set.Elements(neighbor)) == 0 {
				gaps++
			}
		}
	}
	return gaps
}
