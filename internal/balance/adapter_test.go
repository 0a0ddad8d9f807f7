// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hellblazer/luciferase/internal/forest"
	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/spatialindex"
	"github.com/hellblazer/luciferase/internal/tet"
)

type noopGhostTransport struct{}

func (noopGhostTransport) Request(_ context.Context, _ uint32, _ []byte) ([]byte, error) {
	data, _ := ghost.EncodeElements(nil)
	return data, nil
}

func TestForestBalancerRebalanceSucceedsWithMortonGhostOverTetreeIndex(t *testing.T) {
	f := forest.New(spatialindex.Config{MaxEntitiesPerNode: 10, MaxDepth: 10}, noopGhostTransport{})
	p, err := f.AddPartition(uuid.New(), 0, []uint32{1})
	if err != nil {
		t.Fatalf("AddPartition: %v", err)
	}

	local, _ := sfckey.RootMorton().ChildMorton(0)
	ghostKey, _ := local.ChildMorton(0) // one level deeper than local: a 1-level gap, not yet a violation
	deepGhost, _ := ghostKey.ChildMorton(0)
	p.Ghosts.Set().Put(ghost.Element{OriginRank: 1, Key: deepGhost, Level: deepGhost.Level()})

	// Seed a node at local's level. The index stores it under a Tetree key,
	// which is never in a lineage with the Morton ghost keys above, so
	// boundaryPairs finds nothing to pair.
	if err := p.Index.Insert(1, tet.Vec3{}, local.Level(), nil); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	refinedKey := ghostKey // one level shallower than deepGhost: what the peer claims to have converged to
	transport := fakeTransport{respond: func(_ uint32, req RefinementRequest) (RefinementResponse, error) {
		return RefinementResponse{RequesterRank: req.RequesterRank, Round: req.Round, Refined: []sfckey.Key{refinedKey}}, nil
	}}
	exchanger := NewExchanger(0, transport, DefaultConfig(4))
	balancer := NewForestBalancer(exchanger)

	if err := balancer.Rebalance(context.Background(), f, 0); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}
}

func TestForestBalancerRebalanceIsNoopWithoutGhosts(t *testing.T) {
	f := forest.New(spatialindex.Config{MaxEntitiesPerNode: 10, MaxDepth: 10}, noopGhostTransport{})
	if _, err := f.AddPartition(uuid.New(), 0, nil); err != nil {
		t.Fatalf("AddPartition: %v", err)
	}

	balancer := NewForestBalancer(NewExchanger(0, fakeTransport{}, DefaultConfig(4)))
	if err := balancer.Rebalance(context.Background(), f, 0); err != nil {
		t.Errorf("Rebalance on an empty ghost layer should be a no-op, got %v", err)
	}
}
