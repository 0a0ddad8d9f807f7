// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package spatialindex

import "github.com/hellblazer/luciferase/internal/sfckey"

// SubdivisionManager queues nodes that became candidates for subdivision
// while bulk-loading defers the usual per-insert check, draining them all
// at Commit so a large initial load does not re-evaluate (and resubdivide)
// the same node repeatedly.
type SubdivisionManager struct {
	pending []sfckey.Key
	seen    map[sfckey.Key]struct{}
}

func newSubdivisionManager() *SubdivisionManager {
	return &SubdivisionManager{seen: make(map[sfckey.Key]struct{})}
}

func (m *SubdivisionManager) enqueue(key sfckey.Key) {
	if _, ok := m.seen[key]; ok {
		return
	}
	m.seen[key] = struct{}{}
	m.pending = append(m.pending, key)
}

func (m *SubdivisionManager) drain() []sfckey.Key {
	out := m.pending
	m.pending = nil
	m.seen = make(map[sfckey.Key]struct{})
	return out
}

// BeginBulkLoad switches the index into bulk-loading mode: inserts queue
// their candidate node into the SubdivisionManager instead of subdividing
// immediately.
func (idx *Index) BeginBulkLoad() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.bulkLoading = true
}

// CommitBulkLoad drains the SubdivisionManager, evaluating every queued
// node exactly once, then leaves bulk-loading mode.
func (idx *Index) CommitBulkLoad() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.bulkLoading = false

	for _, key := range idx.subMgr.drain() {
		node, ok := idx.store.Get(key)
		if !ok {
			continue
		}
		lvl := key.Level()
		idx.maybeSubdivide(key, node, lvl)
	}
}
