// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package spatialindex

import (
	"math"
	"sort"

	"github.com/hellblazer/luciferase/internal/entity"
	"github.com/hellblazer/luciferase/internal/nodestore"
	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/tet"
)

// collisionThreshold pads an entity's bounds before FindCollisions scans
// for overlap, so near-touching entities are still reported.
const collisionThreshold = 1

// RangeQuery returns every entity whose node intersects box, using
// spec.md §4.2's SFC-range pruning: binary search into the sorted key set
// at a sampling step of max(1, N/100), expanding ±2·step around any sample
// that hits, falling back to a full linear scan if no sample hits at all.
func (idx *Index) RangeQuery(box nodestore.AABB) []entity.ID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.rangeQueryLocked(box)
}

func (idx *Index) rangeQueryLocked(box nodestore.AABB) []entity.ID {
	n := idx.store.Len()
	if n == 0 {
		return nil
	}

	step := n / 100
	if step < 1 {
		step = 1
	}

	candidates := make(map[sfckey.Key]struct{})
	anyHit := false

	for _, k := range idx.store.Sample(step) {
		node, ok := idx.store.Get(k)
		if !ok {
			continue
		}
		if !idx.nodeIntersects(node, k, box) {
			continue
		}
		anyHit = true
		for _, nk := range idx.store.Neighbors(k, 2*step) {
			candidates[nk] = struct{}{}
		}
	}

	if !anyHit {
		for _, k := range idx.store.Keys() {
			candidates[k] = struct{}{}
		}
	}

	seen := make(map[entity.ID]struct{})
	var out []entity.ID
	for k := range candidates {
		node, ok := idx.store.Get(k)
		if !ok || !idx.nodeIntersects(node, k, box) {
			continue
		}
		for _, id := range node.Entities {
			if _, dup := seen[id]; dup {
				continue
			}
			rec, err := idx.entities.Get(id)
			if err != nil || !boundsOf(rec).Intersects(box) {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// nodeIntersects prefers the node's cached AABB; if absent it recomputes
// the bounding cube from the Tet the key addresses.
func (idx *Index) nodeIntersects(node *nodestore.Node, key sfckey.Key, box nodestore.AABB) bool {
	if node.HasAABB() {
		return node.AABB.Intersects(box)
	}
	t, err := tet.FromKey(key)
	if err != nil {
		return false
	}
	return aabbOf(t).Intersects(box)
}

// FindCollisions returns every other entity whose bounds (or position, if
// it has none) overlap id's bounds expanded by collisionThreshold. Always a
// spatial range query, never a node-neighbor walk, since SFC locality does
// not imply structural adjacency.
func (idx *Index) FindCollisions(id entity.ID) ([]entity.ID, error) {
	idx.mu.RLock()
	rec, err := idx.entities.Get(id)
	if err != nil {
		idx.mu.RUnlock()
		return nil, err
	}
	box := boundsOf(rec)
	box = expand(box, collisionThreshold)
	hits := idx.rangeQueryLocked(box)
	idx.mu.RUnlock()

	out := hits[:0:0]
	for _, h := range hits {
		if h != id {
			out = append(out, h)
		}
	}
	return out, nil
}

func boundsOf(rec *entity.Record) nodestore.AABB {
	if rec.Bounds != nil {
		return *rec.Bounds
	}
	return nodestore.AABB{Min: rec.Position, Max: rec.Position}
}

func expand(box nodestore.AABB, by int64) nodestore.AABB {
	return nodestore.AABB{
		Min: tet.Vec3{X: box.Min.X - by, Y: box.Min.Y - by, Z: box.Min.Z - by},
		Max: tet.Vec3{X: box.Max.X + by, Y: box.Max.Y + by, Z: box.Max.Z + by},
	}
}

type neighborHit struct {
	id   entity.ID
	dist float64
}

// KNN returns up to k entities nearest to pos, searching at the given
// level. It scans increasingly wide SFC-neighbor rings around pos's
// locate-key, stopping once the ring's cell size guarantees no closer
// candidate remains outside it (spec.md §4.2: continue while
// cell_size(level) < 2·furthest_candidate.distance).
func (idx *Index) KNN(pos tet.Vec3, k int, level uint8) ([]entity.ID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	leaf, err := tet.Locate(pos, level)
	if err != nil {
		return nil, err
	}
	key, err := idx.keyCache.TMIndex(leaf)
	if err != nil {
		return nil, err
	}

	seen := make(map[entity.ID]struct{})
	var hits []neighborHit
	span := 1
	total := idx.store.Len()

	for {
		for _, nk := range idx.store.Neighbors(key, span) {
			node, ok := idx.store.Get(nk)
			if !ok {
				continue
			}
			for _, id := range node.Entities {
				if _, dup := seen[id]; dup {
					continue
				}
				rec, err := idx.entities.Get(id)
				if err != nil {
					continue
				}
				seen[id] = struct{}{}
				hits = append(hits, neighborHit{id: id, dist: distance(pos, rec.Position)})
			}
		}

		sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

		if len(hits) >= k {
			furthest := hits[k-1].dist
			if float64(tet.CellSize(level)) >= 2*furthest {
				break
			}
		}
		if span >= total {
			break
		}
		span *= 2
	}

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]entity.ID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out, nil
}

func distance(a, b tet.Vec3) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
