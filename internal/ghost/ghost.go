// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ghost implements the boundary replication layer a partition uses
// to hold read-only copies of its neighbors' boundary nodes: a ghost
// element carries the origin rank, the node's key and level, and a
// serialized payload (the node's entity set, or whatever the caller
// chooses to replicate). The Manager syncs ghost sets with peer ranks over
// NATS request/response and a Validator checks the three consistency
// invariants a healthy forest must maintain.
package ghost

import (
	"golang.org/x/crypto/blake2b"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

// Element is one replicated boundary node.
type Element struct {
	OriginRank uint32
	Key        sfckey.Key
	Level      uint8
	Payload    []byte
}

// checksum returns the blake2b-256 digest of e's payload. The Validator
// does not consult it.
func (e Element) checksum() [32]byte {
	return blake2b.Sum256(e.Payload)
}

// Set is the collection of ghost elements a partition holds, keyed by
// (origin rank, key) since a neighbor may replicate the same key at more
// than one level during a refinement transition.
type Set struct {
	byOrigin map[uint32]map[sfckey.Key]Element
}

// NewSet returns an empty ghost Set.
func NewSet() *Set {
	return &Set{byOrigin: make(map[uint32]map[sfckey.Key]Element)}
}

// Put inserts or replaces a ghost element.
func (s *Set) Put(e Element) {
	byKey, ok := s.byOrigin[e.OriginRank]
	if !ok {
		byKey = make(map[sfckey.Key]Element)
		s.byOrigin[e.OriginRank] = byKey
	}
	byKey[e.Key] = e
}

// Get looks up a ghost element by origin rank and key.
func (s *Set) Get(origin uint32, key sfckey.Key) (Element, bool) {
	byKey, ok := s.byOrigin[origin]
	if !ok {
		return Element{}, false
	}
	e, ok := byKey[key]
	return e, ok
}

// Remove deletes every ghost element replicated from origin.
func (s *Set) Remove(origin uint32) {
	delete(s.byOrigin, origin)
}

// Origins returns the set of ranks this Set currently replicates from.
func (s *Set) Origins() []uint32 {
	out := make([]uint32, 0, len(s.byOrigin))
	for r := range s.byOrigin {
		out = append(out, r)
	}
	return out
}

// Elements returns every ghost element replicated from origin.
func (s *Set) Elements(origin uint32) []Element {
	byKey := s.byOrigin[origin]
	out := make([]Element, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	return out
}

// All returns every ghost element in the set, across all origins.
func (s *Set) All() []Element {
	var out []Element
	for _, byKey := range s.byOrigin {
		for _, e := range byKey {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the total number of ghost elements held.
func (s *Set) Len() int {
	n := 0
	for _, byKey := range s.byOrigin {
		n += len(byKey)
	}
	return n
}
