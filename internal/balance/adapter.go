// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"context"
	"fmt"

	"github.com/hellblazer/luciferase/internal/forest"
	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/sfckey"
)

// ForestBalancer adapts an Exchanger to internal/recovery.Balancer,
// assembling BoundaryPairs from a Forest partition's local node keys and
// ghost layer before running the butterfly protocol (spec.md §4.5 step 6,
// §4.6).
type ForestBalancer struct {
	exchanger *Exchanger
}

// NewForestBalancer wraps exchanger for use as a recovery.Balancer.
func NewForestBalancer(exchanger *Exchanger) *ForestBalancer {
	return &ForestBalancer{exchanger: exchanger}
}

// Rebalance runs the butterfly exchange for rank's partition against its
// current ghost layer, then folds any refined subkeys the exchange
// surfaced back into the ghost Set (see applyRefinements).
func (b *ForestBalancer) Rebalance(ctx context.Context, f *forest.Forest, rank uint32) error {
	p, err := f.Partition(rank)
	if err != nil {
		return fmt.Errorf("balance: partition %d: %w", rank, err)
	}

	pairs := boundaryPairs(p)
	if len(pairs) == 0 {
		return nil
	}

	result, err := b.exchanger.Run(ctx, pairs)
	if err != nil {
		return fmt.Errorf("balance: exchange for partition %d: %w", rank, err)
	}

	applyRefinements(p, result.Refined)
	return nil
}

// boundaryPairs pairs every local node key with each ghost element whose
// lineage is adjacent to it (one a strict ancestor of the other), the
// relationship a genuine boundary-adjacent tetrahedron has across a
// partition seam.
func boundaryPairs(p *forest.Partition) []BoundaryPair {
	localKeys := p.Index.NodeKeys()
	var pairs []BoundaryPair
	for _, origin := range p.Ghosts.Set().Origins() {
		for _, elem := range p.Ghosts.Set().Elements(origin) {
			for _, lk := range localKeys {
				if !lk.IsAncestorOf(elem.Key) && !elem.Key.IsAncestorOf(lk) {
					continue
				}
				pairs = append(pairs, BoundaryPair{
					LocalKey:   lk,
					LocalLevel: lk.Level(),
					GhostKey:   elem.Key,
					GhostLevel: elem.Level,
					SourceRank: origin,
				})
			}
		}
	}
	return pairs
}

// applyRefinements folds the peers' refined subkeys into the partition's
// ghost Set: for each refined key and each ghost element in the same
// lineage (ancestor, descendant or equal key), it puts an element at the
// refined key carrying that element's origin rank and payload. The
// existing element is not removed, so the Set then holds both levels of
// that lineage. A refined key with no matching lineage in the
// current ghost layer is dropped; that peer's refinement did not concern
// a boundary this partition currently replicates.
func applyRefinements(p *forest.Partition, refined []sfckey.Key) {
	set := p.Ghosts.Set()
	for _, key := range refined {
		for _, origin := range set.Origins() {
			for _, elem := range set.Elements(origin) {
				if elem.Key.IsAncestorOf(key) || key.IsAncestorOf(elem.Key) || elem.Key.Equals(key) {
					set.Put(ghost.Element{OriginRank: origin, Key: key, Level: key.Level(), Payload: elem.Payload})
				}
			}
		}
	}
}
