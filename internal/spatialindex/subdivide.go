// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package spatialindex

import (
	"github.com/hellblazer/luciferase/internal/entity"
	"github.com/hellblazer/luciferase/internal/nodestore"
	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/tet"
	"github.com/hellblazer/luciferase/internal/xerrors"
)

// maybeSubdivide subdivides node at key (level lvl) if it has exceeded the
// per-node entity cap and has capacity to refine further. Per spec.md
// §4.2, subdivision is a no-op if all entities fall into the same child
// (colocated points), to avoid infinite recursion.
func (idx *Index) maybeSubdivide(key sfckey.Key, node *nodestore.Node, lvl uint8) {
	if node.IsSubdivided() {
		return
	}
	if len(node.Entities) <= idx.cfg.MaxEntitiesPerNode || lvl >= idx.cfg.MaxDepth {
		return
	}
	idx.subdivide(key, node, lvl)
}

// subdivide implements spec.md §4.2's algorithm: compute the 8 Bey
// children, bucket entities by containment, abort if fewer than 2 buckets
// receive entities, otherwise fence the parent with children_mask before
// moving entities into child nodes.
func (idx *Index) subdivide(key sfckey.Key, parent *nodestore.Node, lvl uint8) {
	self, err := tet.FromKey(key)
	if err != nil {
		return
	}
	children, err := self.Children()
	if err != nil {
		return
	}

	type bucket struct {
		childIdx int
		key      sfckey.Key
		entities []entity.ID
	}
	buckets := make(map[int]*bucket)

	for _, id := range parent.Entities {
		rec, err := idx.entities.Get(id)
		if err != nil {
			continue
		}
		if rec.Spanning() {
			// Spanning entities stay on the parent; subdivision never
			// moves them into children. See spec.md §4.2's spanning policy.
			continue
		}

		childIdx := -1
		for i, c := range children {
			if c.Contains(rec.Position) {
				childIdx = i
				break
			}
		}
		if childIdx == -1 {
			leaf, err := tet.Locate(rec.Position, lvl+1)
			if err != nil {
				continue
			}
			// Match by cube anchor, not full Tet equality: Locate assigns
			// leaf's Type from the sextant that actually contains the
			// point, which need not equal children[i]'s type-table Type
			// even when they're the same cube.
			for i, c := range children {
				if c.X == leaf.X && c.Y == leaf.Y && c.Z == leaf.Z {
					childIdx = i
					break
				}
			}
		}
		if childIdx == -1 {
			continue
		}

		b, ok := buckets[childIdx]
		if !ok {
			childKey, err := idx.keyCache.TMIndex(children[childIdx])
			if err != nil {
				continue
			}
			b = &bucket{childIdx: childIdx, key: childKey}
			buckets[childIdx] = b
		}
		b.entities = append(b.entities, id)
	}

	if len(buckets) < 2 {
		return
	}

	var mask uint8
	for _, b := range buckets {
		mask |= 1 << uint(b.childIdx)
	}
	parent.ChildrenMask = mask

	for _, b := range buckets {
		childNode := idx.store.GetOrCreate(b.key)
		childNode.SetAABB(aabbOf(children[b.childIdx]))
		for _, id := range b.entities {
			childNode.AddEntity(id)
			idx.entities.AddLocation(id, b.key)
			parent.RemoveEntity(id)
			idx.entities.RemoveLocation(id, key)
		}
	}
}

// ForceSubdivide materializes key's 8 Bey children structurally, without
// requiring any entity to occupy them, and returns their keys. Ordinary
// subdivide only fires when a node's entity count demands it; the
// cross-partition 2:1 balancer instead needs to converge a level gap at a
// boundary that may hold no local entities at all, so this is the same
// child-key derivation subdivide uses, generalized to run unconditionally.
func (idx *Index) ForceSubdivide(key sfckey.Key) ([]sfckey.Key, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	node, ok := idx.store.Get(key)
	if !ok {
		node = idx.store.GetOrCreate(key)
	}

	self, err := tet.FromKey(key)
	if err != nil {
		return nil, err
	}
	children, err := self.Children()
	if err != nil {
		return nil, err
	}

	var mask uint8
	keys := make([]sfckey.Key, 0, len(children))
	for i, c := range children {
		childKey, err := idx.keyCache.TMIndex(c)
		if err != nil {
			continue
		}
		childNode := idx.store.GetOrCreate(childKey)
		childNode.SetAABB(aabbOf(c))
		mask |= 1 << uint(i)
		keys = append(keys, childKey)
	}
	node.ChildrenMask = mask
	return keys, nil
}

// Merge collapses a fully-materialized set of sibling leaf nodes back into
// their parent, for use by the cross-partition balancer when an
// under-occupied subtree no longer justifies its own nodes. Precondition:
// every sibling has no grandchildren and the combined entity count does
// not exceed MaxEntitiesPerNode.
func (idx *Index) Merge(parentKey sfckey.Key) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	parent, ok := idx.store.Get(parentKey)
	if !ok || !parent.IsSubdivided() {
		return xerrors.ErrNodeNotFound
	}

	self, err := tet.FromKey(parentKey)
	if err != nil {
		return err
	}
	children, err := self.Children()
	if err != nil {
		return err
	}

	total := len(parent.Entities)
	type child struct {
		idx  int
		key  sfckey.Key
		node *nodestore.Node
	}
	var present []child
	for i, c := range children {
		if parent.ChildrenMask&(1<<uint(i)) == 0 {
			continue
		}
		childKey, err := idx.keyCache.TMIndex(c)
		if err != nil {
			return err
		}
		n, ok := idx.store.Get(childKey)
		if !ok {
			continue
		}
		if n.IsSubdivided() {
			return xerrors.ErrBalanceRoundFailed
		}
		total += len(n.Entities)
		present = append(present, child{idx: i, key: childKey, node: n})
	}

	if total > idx.cfg.MaxEntitiesPerNode {
		return xerrors.ErrBalanceRoundFailed
	}

	for _, c := range present {
		for _, id := range c.node.Entities {
			parent.AddEntity(id)
			idx.entities.AddLocation(id, parentKey)
			idx.entities.RemoveLocation(id, c.key)
		}
		idx.store.Delete(c.key)
	}
	parent.ChildrenMask = 0
	return nil
}
