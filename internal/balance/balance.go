// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package balance implements the cross-partition 2:1 butterfly balance
// protocol: O(log P) rounds of pairwise rank exchange (partner = local
// rank XOR 1<<round), converging boundary-adjacent refinement levels to
// within one of each other.
package balance

import "github.com/hellblazer/luciferase/internal/sfckey"

// BoundaryPair associates a locally owned node with its ghost counterpart
// across a partition boundary. Assembling these pairs from a Forest's
// partitions and ghost layer is the caller's job; Checker only evaluates
// the 2:1 invariant over whatever pairs it is given.
type BoundaryPair struct {
	LocalKey   sfckey.Key
	LocalLevel uint8
	GhostKey   sfckey.Key
	GhostLevel uint8
	SourceRank uint32
}

// Violation is a single 2:1-invariant breach: the local and ghost sides
// of a boundary differ in refinement level by more than one.
type Violation struct {
	LocalKey   sfckey.Key
	GhostKey   sfckey.Key
	LocalLevel uint8
	GhostLevel uint8
	SourceRank uint32
}

// RefinementRequest is sent to a round's XOR partner, carrying every
// violation whose ghost originates from that partner.
type RefinementRequest struct {
	RequesterRank uint32
	Round         uint32
	TimestampMs   int64
	Violations    []Violation
}

// RefinementResponse answers a RefinementRequest with the subkeys the
// peer refined to resolve the reported violations. An empty Refined
// slice is a valid response contributing nothing to aggregation.
type RefinementResponse struct {
	RequesterRank uint32
	Round         uint32
	Refined       []sfckey.Key
}

// Checker evaluates the 2:1 balance invariant over a set of boundary
// pairs (spec: "for any two boundary-adjacent tetrahedra, one local, one
// ghost, |level_local - level_ghost| <= 1").
type Checker struct{}

// NewChecker returns a Checker. It holds no state; all inputs are
// supplied per call.
func NewChecker() *Checker {
	return &Checker{}
}

// Check returns one Violation per pair whose level difference exceeds 1.
func (c *Checker) Check(pairs []BoundaryPair) []Violation {
	var violations []Violation
	for _, p := range pairs {
		diff := int(p.LocalLevel) - int(p.GhostLevel)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			violations = append(violations, Violation{
				LocalKey:   p.LocalKey,
				GhostKey:   p.GhostKey,
				LocalLevel: p.LocalLevel,
				GhostLevel: p.GhostLevel,
				SourceRank: p.SourceRank,
			})
		}
	}
	return violations
}
