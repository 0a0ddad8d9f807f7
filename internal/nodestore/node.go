// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nodestore maps SFCKey -> Node, kept sorted for NavigableSet-style
// range queries, with a bounded object pool to absorb subdivision/merge
// churn without handing every Node to the GC.
package nodestore

import "github.com/hellblazer/luciferase/internal/tet"

// EntityID identifies an entity stored in the spatial index.
type EntityID uint64

// AABB is an axis-aligned bounding box cached on a Node so range queries can
// avoid recomputing tetrahedron vertices on every probe.
type AABB struct {
	Min, Max tet.Vec3
}

// Intersects reports whether a and b overlap (touching faces count as
// overlap, matching an inclusive [Min,Max] box).
func (a AABB) Intersects(b AABB) bool {
	if a.Max.X < b.Min.X || b.Max.X < a.Min.X {
		return false
	}
	if a.Max.Y < b.Min.Y || b.Max.Y < a.Min.Y {
		return false
	}
	if a.Max.Z < b.Min.Z || b.Max.Z < a.Min.Z {
		return false
	}
	return true
}

// Node is what an SFCKey maps to in the store: the entities directly held
// at this key, whether it has subdivided (ChildrenMask != 0), and a cached
// bounding box.
type Node struct {
	Entities     []EntityID
	ChildrenMask uint8
	AABB         AABB
	hasAABB      bool
}

// IsSubdivided reports whether this node has Bey children.
func (n *Node) IsSubdivided() bool {
	return n.ChildrenMask != 0
}

// HasAABB reports whether a cached bounding box has been set.
func (n *Node) HasAABB() bool {
	return n.hasAABB
}

// SetAABB caches n's bounding box.
func (n *Node) SetAABB(box AABB) {
	n.AABB = box
	n.hasAABB = true
}

// AddEntity appends id to n's entity list, if not already present.
func (n *Node) AddEntity(id EntityID) {
	for _, e := range n.Entities {
		if e == id {
			return
		}
	}
	n.Entities = append(n.Entities, id)
}

// RemoveEntity removes id from n's entity list, reporting whether it was
// present.
func (n *Node) RemoveEntity(id EntityID) bool {
	for i, e := range n.Entities {
		if e == id {
			n.Entities = append(n.Entities[:i], n.Entities[i+1:]...)
			return true
		}
	}
	return false
}

// Empty reports whether n holds no entities and has no children, i.e. it is
// a candidate for garbage collection from the store.
func (n *Node) Empty() bool {
	return len(n.Entities) == 0 && n.ChildrenMask == 0
}

// reset clears n for reuse from the pool.
func (n *Node) reset() {
	n.Entities = n.Entities[:0]
	n.ChildrenMask = 0
	n.AABB = AABB{}
	n.hasAABB = false
}
