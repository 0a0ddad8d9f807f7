// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package nodestore

import (
	"sort"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

// Store maps sfckey.Key -> *Node, keeping an ascending sorted key list
// alongside the map so range queries can binary-search into it the way a
// NavigableSet would (Floor/Ceiling/Sample). The map gives O(1) point
// lookup; the sorted slice gives ordered traversal. Locking is left to the
// caller (the spatial index holds one reader-writer lock around both the
// store and the key set, per its own concurrency contract).
type Store struct {
	nodes  map[sfckey.Key]*Node
	sorted []sfckey.Key
	pool   *NodePool
}

// New creates an empty store with its own node pool.
func New() *Store {
	return &Store{
		nodes:  make(map[sfckey.Key]*Node),
		sorted: make([]sfckey.Key, 0),
		pool:   NewNodePool(),
	}
}

func (s *Store) searchPos(key sfckey.Key) int {
	return sort.Search(len(s.sorted), func(i int) bool {
		return s.sorted[i].Compare(key) >= 0
	})
}

// Get returns the node at key, if present.
func (s *Store) Get(key sfckey.Key) (*Node, bool) {
	n, ok := s.nodes[key]
	return n, ok
}

// GetOrCreate returns the node at key, creating (from the pool) and
// inserting it into the sorted key set if absent.
func (s *Store) GetOrCreate(key sfckey.Key) *Node {
	if n, ok := s.nodes[key]; ok {
		return n
	}

	n := s.pool.Get()
	s.nodes[key] = n

	pos := s.searchPos(key)
	s.sorted = append(s.sorted, sfckey.Key{})
	copy(s.sorted[pos+1:], s.sorted[pos:])
	s.sorted[pos] = key

	return n
}

// Delete removes the node at key, if present, returning it to the pool.
// Reports whether a node was removed.
func (s *Store) Delete(key sfckey.Key) bool {
	n, ok := s.nodes[key]
	if !ok {
		return false
	}
	delete(s.nodes, key)

	pos := s.searchPos(key)
	if pos < len(s.sorted) && s.sorted[pos].Equals(key) {
		s.sorted = append(s.sorted[:pos], s.sorted[pos+1:]...)
	}

	s.pool.Put(n)
	return true
}

// Len returns the number of nodes currently stored.
func (s *Store) Len() int {
	return len(s.sorted)
}

// Keys returns a copy of the ascending sorted key list.
func (s *Store) Keys() []sfckey.Key {
	out := make([]sfckey.Key, len(s.sorted))
	copy(out, s.sorted)
	return out
}

// Floor returns the greatest key <= key present in the store.
func (s *Store) Floor(key sfckey.Key) (sfckey.Key, bool) {
	pos := s.searchPos(key)
	if pos < len(s.sorted) && s.sorted[pos].Equals(key) {
		return s.sorted[pos], true
	}
	if pos == 0 {
		return sfckey.Key{}, false
	}
	return s.sorted[pos-1], true
}

// Ceiling returns the smallest key >= key present in the store.
func (s *Store) Ceiling(key sfckey.Key) (sfckey.Key, bool) {
	pos := s.searchPos(key)
	if pos >= len(s.sorted) {
		return sfckey.Key{}, false
	}
	return s.sorted[pos], true
}

// Sample returns every step-th key of the sorted set (step >= 1), the
// sampling sequence the spatial index's range query binary-searches over
// before expanding to neighbors.
func (s *Store) Sample(step int) []sfckey.Key {
	if step < 1 {
		step = 1
	}
	out := make([]sfckey.Key, 0, len(s.sorted)/step+1)
	for i := 0; i < len(s.sorted); i += step {
		out = append(out, s.sorted[i])
	}
	return out
}

// Neighbors returns the keys within span positions of key in the sorted
// set, in ascending order, clamped to the set's bounds.
func (s *Store) Neighbors(key sfckey.Key, span int) []sfckey.Key {
	pos := s.searchPos(key)
	lo := pos - span
	if lo < 0 {
		lo = 0
	}
	hi := pos + span + 1
	if hi > len(s.sorted) {
		hi = len(s.sorted)
	}
	if lo >= hi {
		return nil
	}
	out := make([]sfckey.Key, hi-lo)
	copy(out, s.sorted[lo:hi])
	return out
}

// PoolSize returns the number of idle nodes currently sitting in the
// store's pool, for diagnostics.
func (s *Store) PoolSize() int {
	return s.pool.Size()
}
