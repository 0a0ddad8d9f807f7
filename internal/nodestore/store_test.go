// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package nodestore

import (
	"testing"

	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/tet"
)

func vec3(x, y, z int64) tet.Vec3 {
	return tet.Vec3{X: x, Y: y, Z: z}
}

func mustChild(t *testing.T, k sfckey.Key, cube uint8) sfckey.Key {
	t.Helper()
	c, err := k.ChildMorton(cube)
	if err != nil {
		t.Fatalf("ChildMorton(%d): %v", cube, err)
	}
	return c
}

func TestGetOrCreateKeepsSortedOrder(t *testing.T) {
	s := New()
	root := sfckey.RootMorton()

	keys := []sfckey.Key{
		mustChild(t, root, 5),
		mustChild(t, root, 1),
		mustChild(t, root, 7),
		mustChild(t, root, 0),
	}
	for _, k := range keys {
		s.GetOrCreate(k)
	}
	if s.Len() != len(keys) {
		t.Fatalf("Len() = %d, want %d", s.Len(), len(keys))
	}

	sorted := s.Keys()
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Compare(sorted[i]) > 0 {
			t.Errorf("keys not sorted: %v before %v", sorted[i-1], sorted[i])
		}
	}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	s := New()
	k := mustChild(t, sfckey.RootMorton(), 3)

	n1 := s.GetOrCreate(k)
	n1.AddEntity(EntityID(42))

	n2 := s.GetOrCreate(k)
	if n2 != n1 {
		t.Fatal("GetOrCreate on an existing key returned a different node")
	}
	if len(n2.Entities) != 1 {
		t.Errorf("entities = %v, want 1 entry", n2.Entities)
	}
}

func TestDeleteRecyclesNode(t *testing.T) {
	s := New()
	k := mustChild(t, sfckey.RootMorton(), 2)

	n := s.GetOrCreate(k)
	n.AddEntity(EntityID(1))

	if !s.Delete(k) {
		t.Fatal("Delete reported key not found")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after delete, want 0", s.Len())
	}
	if _, ok := s.Get(k); ok {
		t.Error("Get found a node after Delete")
	}

	n2 := s.GetOrCreate(k)
	if len(n2.Entities) != 0 {
		t.Errorf("node reused from pool was not reset: %v", n2.Entities)
	}
}

func TestFloorCeiling(t *testing.T) {
	s := New()
	root := sfckey.RootMorton()
	a := mustChild(t, root, 1)
	b := mustChild(t, root, 5)
	s.GetOrCreate(a)
	s.GetOrCreate(b)

	mid := mustChild(t, root, 3)
	floor, ok := s.Floor(mid)
	if !ok || !floor.Equals(a) {
		t.Errorf("Floor(mid) = %v, %v, want %v, true", floor, ok, a)
	}
	ceil, ok := s.Ceiling(mid)
	if !ok || !ceil.Equals(b) {
		t.Errorf("Ceiling(mid) = %v, %v, want %v, true", ceil, ok, b)
	}
}

func TestSampleStep(t *testing.T) {
	s := New()
	root := sfckey.RootMorton()
	for i := uint8(0); i < 8; i++ {
		s.GetOrCreate(mustChild(t, root, i))
	}
	sample := s.Sample(2)
	if len(sample) != 4 {
		t.Fatalf("Sample(2) returned %d keys, want 4", len(sample))
	}
}

func TestNeighborsClampsToBounds(t *testing.T) {
	s := New()
	root := sfckey.RootMorton()
	var keys []sfckey.Key
	for i := uint8(0); i < 8; i++ {
		k := mustChild(t, root, i)
		keys = append(keys, k)
		s.GetOrCreate(k)
	}
	neighbors := s.Neighbors(keys[0], 2)
	if len(neighbors) != 3 {
		t.Fatalf("Neighbors at left edge = %d entries, want 3", len(neighbors))
	}
}

func TestAABBIntersects(t *testing.T) {
	a := AABB{Min: vec3(0, 0, 0), Max: vec3(10, 10, 10)}
	b := AABB{Min: vec3(5, 5, 5), Max: vec3(15, 15, 15)}
	c := AABB{Min: vec3(20, 20, 20), Max: vec3(30, 30, 30)}

	if !a.Intersects(b) {
		t.Error("expected overlapping boxes to intersect")
	}
	if a.Intersects(c) {
		t.Error("expected disjoint boxes not to intersect")
	}
}
