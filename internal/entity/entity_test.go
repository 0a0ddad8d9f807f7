// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package entity

import (
	"testing"

	"github.com/hellblazer/luciferase/internal/nodestore"
	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/tet"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager()
	m.Create(1, tet.Vec3{X: 10, Y: 20, Z: 30}, nil)

	r, err := m.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Spanning() {
		t.Error("entity with nil bounds should not be spanning")
	}
	if r.Position != (tet.Vec3{X: 10, Y: 20, Z: 30}) {
		t.Errorf("Position = %+v", r.Position)
	}
}

func TestGetUnknownEntity(t *testing.T) {
	m := NewManager()
	if _, err := m.Get(99); err == nil {
		t.Error("expected error for unknown entity")
	}
}

func TestLocationsTrackAddRemove(t *testing.T) {
	m := NewManager()
	m.Create(1, tet.Vec3{}, nil)

	root := sfckey.RootMorton()
	k1, _ := root.ChildMorton(0)
	k2, _ := root.ChildMorton(1)

	if err := m.AddLocation(1, k1); err != nil {
		t.Fatalf("AddLocation: %v", err)
	}
	if err := m.AddLocation(1, k2); err != nil {
		t.Fatalf("AddLocation: %v", err)
	}

	locs, err := m.Locations(1)
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("Locations = %v, want 2 entries", locs)
	}

	if err := m.RemoveLocation(1, k1); err != nil {
		t.Fatalf("RemoveLocation: %v", err)
	}
	locs, _ = m.Locations(1)
	if len(locs) != 1 || !locs[0].Equals(k2) {
		t.Errorf("Locations after removal = %v, want [%v]", locs, k2)
	}
}

func TestDeleteReturnsLastLocations(t *testing.T) {
	m := NewManager()
	m.Create(1, tet.Vec3{}, nil)
	k, _ := sfckey.RootMorton().ChildMorton(0)
	m.AddLocation(1, k)

	locs, err := m.Delete(1)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(locs) != 1 || !locs[0].Equals(k) {
		t.Errorf("Delete returned %v, want [%v]", locs, k)
	}

	if _, err := m.Get(1); err == nil {
		t.Error("expected entity to be gone after Delete")
	}
}

func TestSpanningEntity(t *testing.T) {
	m := NewManager()
	bounds := nodestore.AABB{Min: tet.Vec3{X: 0, Y: 0, Z: 0}, Max: tet.Vec3{X: 10, Y: 10, Z: 10}}
	m.Create(1, tet.Vec3{}, &bounds)

	r, err := m.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !r.Spanning() {
		t.Error("entity with bounds should be spanning")
	}
}
