// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package entity tracks, for every entity known to a spatial index, its
// position, optional bounds, and the set of node keys that currently hold
// it. The package never touches the node store directly: the spatial index
// keeps both in lockstep.
package entity

import (
	"sync"

	"github.com/hellblazer/luciferase/internal/nodestore"
	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/tet"
	"github.com/hellblazer/luciferase/internal/xerrors"
)

// ID identifies an entity; an alias of nodestore.EntityID so the two
// packages always agree on the wire type.
type ID = nodestore.EntityID

// Record is everything the manager tracks about one entity.
//
// Locations is the exact set of node keys whose node currently lists this
// entity, per spec's invariant: for non-spanning entities this set has
// exactly one member; for spanning entities it has one member per
// intersecting node.
type Record struct {
	ID        ID
	Position  tet.Vec3
	Bounds    *nodestore.AABB
	Locations map[sfckey.Key]struct{}
}

// Spanning reports whether r has bounds recorded (and so may live in more
// than one node at once).
func (r *Record) Spanning() bool {
	return r.Bounds != nil
}

// Manager is the entity->record table for one spatial index.
type Manager struct {
	mu      sync.RWMutex
	records map[ID]*Record
}

// NewManager creates an empty entity manager.
func NewManager() *Manager {
	return &Manager{records: make(map[ID]*Record)}
}

// Create registers a new entity at position pos with no bounds and no
// locations yet; the caller (the spatial index) populates Locations once it
// has placed the entity in the node store.
func (m *Manager) Create(id ID, pos tet.Vec3, bounds *nodestore.AABB) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &Record{
		ID:        id,
		Position:  pos,
		Bounds:    bounds,
		Locations: make(map[sfckey.Key]struct{}),
	}
	m.records[id] = r
	return r
}

// Get returns the record for id, or ErrEntityNotFound.
func (m *Manager) Get(id ID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, xerrors.ErrEntityNotFound
	}
	return r, nil
}

// Delete removes id's record entirely, returning its last known locations
// so the caller can clean up the node store.
func (m *Manager) Delete(id ID) ([]sfckey.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, xerrors.ErrEntityNotFound
	}
	delete(m.records, id)
	return keysOf(r), nil
}

// UpdatePosition moves id's recorded position. The caller is responsible
// for re-locating it in the node store and adjusting Locations.
func (m *Manager) UpdatePosition(id ID, pos tet.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return xerrors.ErrEntityNotFound
	}
	r.Position = pos
	return nil
}

// AddLocation records that id is now held by the node at key.
func (m *Manager) AddLocation(id ID, key sfckey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return xerrors.ErrEntityNotFound
	}
	r.Locations[key] = struct{}{}
	return nil
}

// RemoveLocation records that id is no longer held by the node at key.
func (m *Manager) RemoveLocation(id ID, key sfckey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return xerrors.ErrEntityNotFound
	}
	delete(r.Locations, key)
	return nil
}

// Locations returns a snapshot of id's current location set.
func (m *Manager) Locations(id ID) ([]sfckey.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, xerrors.ErrEntityNotFound
	}
	return keysOf(r), nil
}

// Len returns the number of tracked entities.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// IDs returns every tracked entity id, used by the forest to assemble the
// authoritative-entity snapshot the ghost Validator checks for duplicates.
func (m *Manager) IDs() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ID, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	return out
}

func keysOf(r *Record) []sfckey.Key {
	out := make([]sfckey.Key, 0, len(r.Locations))
	for k := range r.Locations {
		out = append(out, k)
	}
	return out
}
