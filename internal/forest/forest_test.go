// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package forest

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/spatialindex"
	"github.com/hellblazer/luciferase/internal/tet"
)

type noopTransport struct{}

func (noopTransport) Request(_ context.Context, _ uint32, _ []byte) ([]byte, error) {
	data, _ := ghost.EncodeElements(nil)
	return data, nil
}

func newTestForest() *Forest {
	return New(spatialindex.Config{MaxEntitiesPerNode: 10, MaxDepth: 5}, noopTransport{})
}

func TestAddPartitionRegistersTopology(t *testing.T) {
	f := newTestForest()
	id := uuid.New()

	p, err := f.AddPartition(id, 0, []uint32{1, 2})
	if err != nil {
		t.Fatalf("AddPartition: %v", err)
	}
	if p.Rank != 0 || p.ID != id {
		t.Errorf("partition = %+v, want rank 0 id %v", p, id)
	}
	if !f.Topology().IsActive(0) {
		t.Error("expected rank 0 active in topology after AddPartition")
	}

	got, err := f.Partition(0)
	if err != nil || got != p {
		t.Fatalf("Partition(0) = %v, %v, want %v, nil", got, err, p)
	}
}

func TestRemovePartitionDropsGhostsFromRemainingPartitions(t *testing.T) {
	f := newTestForest()
	idA, idB := uuid.New(), uuid.New()
	f.AddPartition(idA, 0, []uint32{1})
	f.AddPartition(idB, 1, []uint32{0})

	pb, _ := f.Partition(1)
	key, _ := tet.TMIndex(tet.Root())
	pb.Ghosts.Set().Put(ghost.Element{OriginRank: 0, Key: key, Level: 0})
	if pb.Ghosts.Set().Len() != 1 {
		t.Fatalf("setup: expected 1 ghost element, got %d", pb.Ghosts.Set().Len())
	}

	f.RemovePartition(0)

	if f.Topology().IsActive(0) {
		t.Error("rank 0 should be inactive after RemovePartition")
	}
	if pb.Ghosts.Set().Len() != 0 {
		t.Errorf("rank 1's ghosts from removed rank 0 should be dropped, got %d remaining", pb.Ghosts.Set().Len())
	}
	if _, err := f.Partition(0); err == nil {
		t.Error("expected Partition(0) to fail after removal")
	}
}

func TestValidationSnapshotReflectsEntitiesAndGhosts(t *testing.T) {
	f := newTestForest()
	idA, idB := uuid.New(), uuid.New()
	pa, _ := f.AddPartition(idA, 0, []uint32{1})
	pb, _ := f.AddPartition(idB, 1, []uint32{0})

	if err := pa.Index.Insert(1, tet.Vec3{X: 1, Y: 1, Z: 1}, 2, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	key, _ := tet.TMIndex(tet.Root())
	pb.Ghosts.Set().Put(ghost.Element{OriginRank: 0, Key: key, Level: 0})

	snap := f.ValidationSnapshot()
	if _, ok := snap.AuthoritativeEntities[0][1]; !ok {
		t.Error("expected entity 1 present in rank 0's authoritative set")
	}
	if len(snap.Ghosts[1].Elements(0)) != 1 {
		t.Errorf("expected rank 1 to hold 1 ghost from rank 0")
	}
	if len(snap.Adjacency[0]) != 1 || snap.Adjacency[0][0] != 1 {
		t.Errorf("Adjacency[0] = %v, want [1]", snap.Adjacency[0])
	}
}

func TestSyncAllSucceedsAgainstNoopTransport(t *testing.T) {
	f := newTestForest()
	idA, idB := uuid.New(), uuid.New()
	f.AddPartition(idA, 0, []uint32{1})
	f.AddPartition(idB, 1, []uint32{0})

	f.SyncAll(context.Background())

	pa, _ := f.Partition(0)
	if pa.Ghosts.Set().Len() != 0 {
		t.Errorf("expected no ghosts from an empty-response transport, got %d", pa.Ghosts.Set().Len())
	}
}
