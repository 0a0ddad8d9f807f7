// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package spatialindex implements insert/remove/update/lookup, k-NN and
// range queries, adaptive subdivision and sibling merge over a tetrahedral
// (or octree) SFC-keyed node store. One reader-writer lock guards the whole
// index: readers (lookups, range queries, k-NN) run concurrently with each
// other; writers (insert, remove, update, subdivide, merge) are exclusive.
package spatialindex

import (
	"sync"

	"github.com/hellblazer/luciferase/internal/entity"
	"github.com/hellblazer/luciferase/internal/nodestore"
	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/tet"
	"github.com/hellblazer/luciferase/internal/xerrors"
)

// Config carries the subdivision and refinement limits the index enforces.
// Expose it at construction rather than a pile of setters.
type Config struct {
	MaxEntitiesPerNode int
	MaxDepth           uint8
}

// Index is one partition's spatial index: a node store, an entity manager,
// and the insert/query algorithms tying them together.
type Index struct {
	mu       sync.RWMutex
	cfg      Config
	store    *nodestore.Store
	entities *entity.Manager
	keyCache *tet.KeyCache

	bulkLoading bool
	subMgr      *SubdivisionManager
}

// New creates an empty index.
func New(cfg Config) *Index {
	if cfg.MaxDepth == 0 || cfg.MaxDepth > tet.MaxLevel {
		cfg.MaxDepth = tet.MaxLevel
	}
	if cfg.MaxEntitiesPerNode <= 0 {
		cfg.MaxEntitiesPerNode = 10
	}
	return &Index{
		cfg:      cfg,
		store:    nodestore.New(),
		entities: entity.NewManager(),
		keyCache: tet.NewKeyCache(4096),
		subMgr:   newSubdivisionManager(),
	}
}

// Len returns the number of entities currently tracked.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entities.Len()
}

// NodeCount returns the number of nodes currently materialized in the store.
func (idx *Index) NodeCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.store.Len()
}

// EntityIDs returns every entity id this index tracks, used by the forest
// to assemble the authoritative-entity snapshot for ghost validation.
func (idx *Index) EntityIDs() []entity.ID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entities.IDs()
}

// NodeKeys returns every key currently materialized in the node store,
// used to assemble boundary pairs for the cross-partition 2:1 balance
// check against a neighbor's ghost layer.
func (idx *Index) NodeKeys() []sfckey.Key {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.store.Keys()
}

func (idx *Index) locateKey(pos tet.Vec3, level uint8) (sfckey.Key, tet.Tet, error) {
	leaf, err := tet.Locate(pos, level)
	if err != nil {
		return sfckey.Key{}, tet.Tet{}, err
	}
	key, err := idx.keyCache.TMIndex(leaf)
	if err != nil {
		return sfckey.Key{}, tet.Tet{}, err
	}
	return key, leaf, nil
}

// Insert places id at pos (optionally with bounds, for spanning entities)
// starting at the given level. If the target node has already subdivided,
// insertion descends one level at a time, up to MaxDepth.
func (idx *Index) Insert(id entity.ID, pos tet.Vec3, level uint8, bounds *nodestore.AABB) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if level > idx.cfg.MaxDepth {
		return xerrors.ErrMaxDepthExceeded
	}
	if _, err := idx.entities.Get(id); err == nil {
		return xerrors.ErrDuplicateEntity
	}

	lvl := level
	key, leaf, err := idx.locateKey(pos, lvl)
	if err != nil {
		return err
	}
	node := idx.store.GetOrCreate(key)
	for node.IsSubdivided() && lvl < idx.cfg.MaxDepth {
		lvl++
		key, leaf, err = idx.locateKey(pos, lvl)
		if err != nil {
			return err
		}
		node = idx.store.GetOrCreate(key)
	}
	node.SetAABB(aabbOf(leaf))

	idx.entities.Create(id, pos, bounds)

	targetKeys := []sfckey.Key{key}
	if bounds != nil {
		targetKeys = idx.spanningKeys(*bounds, lvl, key)
	}
	for _, k := range targetKeys {
		n := idx.store.GetOrCreate(k)
		n.AddEntity(id)
		if err := idx.entities.AddLocation(id, k); err != nil {
			return err
		}
	}

	if !idx.bulkLoading {
		idx.maybeSubdivide(key, node, lvl)
	} else {
		idx.subMgr.enqueue(key)
	}
	return nil
}

// spanningKeys returns primary followed by the additional node keys (at
// lvl) whose bounding cube intersects box. Candidate
// keys are derived from the 8 corners of box, per spec.md §4.2's spanning
// policy ("recorded in each intersecting node"); this approximates exact
// tetrahedron-AABB intersection with corner sampling, sufficient for the
// node granularity the index operates at.
func (idx *Index) spanningKeys(box nodestore.AABB, lvl uint8, primary sfckey.Key) []sfckey.Key {
	corners := [8]tet.Vec3{
		{X: box.Min.X, Y: box.Min.Y, Z: box.Min.Z},
		{X: box.Max.X, Y: box.Min.Y, Z: box.Min.Z},
		{X: box.Min.X, Y: box.Max.Y, Z: box.Min.Z},
		{X: box.Max.X, Y: box.Max.Y, Z: box.Min.Z},
		{X: box.Min.X, Y: box.Min.Y, Z: box.Max.Z},
		{X: box.Max.X, Y: box.Min.Y, Z: box.Max.Z},
		{X: box.Min.X, Y: box.Max.Y, Z: box.Max.Z},
		{X: box.Max.X, Y: box.Max.Y, Z: box.Max.Z},
	}

	seen := map[sfckey.Key]struct{}{primary: {}}
	out := []sfckey.Key{primary}
	for _, c := range corners {
		if c.X < 0 || c.Y < 0 || c.Z < 0 || c.X >= tet.MaxCoord || c.Y >= tet.MaxCoord || c.Z >= tet.MaxCoord {
			continue
		}
		k, leaf, err := idx.locateKey(c, lvl)
		if err != nil {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		n := idx.store.GetOrCreate(k)
		n.SetAABB(aabbOf(leaf))
		out = append(out, k)
	}
	return out
}

// Remove drops id from every node it occupies and forgets its record.
func (idx *Index) Remove(id entity.ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	locs, err := idx.entities.Delete(id)
	if err != nil {
		return err
	}
	for _, k := range locs {
		if n, ok := idx.store.Get(k); ok {
			n.RemoveEntity(id)
			if n.Empty() {
				idx.store.Delete(k)
			}
		}
	}
	return nil
}

// Update moves id to a new position, removing it from its old node(s) and
// reinserting at the given level.
func (idx *Index) Update(id entity.ID, newPos tet.Vec3, level uint8) error {
	idx.mu.Lock()
	rec, err := idx.entities.Get(id)
	if err != nil {
		idx.mu.Unlock()
		return err
	}
	bounds := rec.Bounds
	idx.mu.Unlock()

	if err := idx.Remove(id); err != nil {
		return err
	}
	return idx.Insert(id, newPos, level, bounds)
}

// Lookup returns id's current entity record.
func (idx *Index) Lookup(id entity.ID) (*entity.Record, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entities.Get(id)
}

func aabbOf(t tet.Tet) nodestore.AABB {
	min, max := t.AABB()
	return nodestore.AABB{Min: min, Max: max}
}
