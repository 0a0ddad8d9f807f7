// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tet implements integer-coordinate tetrahedron geometry for the
// Tetree refinement hierarchy: 6 types per cube via a Freudenthal/Kuhn
// simplex decomposition, Bey-style 1-to-8 refinement, point location and
// containment, and the cube-id/type transition tables that let parent and
// child be derived from one another without stored pointers.
//
// A Tet's node-store footprint is its bounding cube (Anchor, cellSize at
// Level) — matching the spec's cached-AABB node model, which never stores
// exact tetrahedron vertices either. Type selects which of the 6 Kuhn
// tetrahedra within that cube is meant, and is what Contains/Vertices use
// for exact point-in-tetrahedron geometry.
package tet

import (
	"fmt"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

// MaxLevel mirrors sfckey.MaxLevel: the deepest representable refinement.
const MaxLevel = sfckey.MaxLevel

// MaxCoord is the exclusive upper bound of the root domain on every axis.
const MaxCoord = int64(1) << MaxLevel

// Tet is an integer-coordinate tetrahedron: one of the 6 Kuhn simplices
// tiling the cube anchored at (X,Y,Z) with side cellSize(Level).
type Tet struct {
	X, Y, Z int64
	Level   uint8
	Type    uint8 // 0..5
}

// Root returns the level-0 tetrahedron spanning the whole domain, type 0.
func Root() Tet {
	return Tet{Level: 0, Type: 0}
}

// CellSize returns the cube side length at the given level.
func CellSize(level uint8) int64 {
	return int64(1) << (uint(MaxLevel) - uint(level))
}

// cellAxisPerm lists the 6 permutations of {0,1,2} (the 3! orderings of
// x/y/z) that define the Freudenthal/Kuhn decomposition of a cube into 6
// tetrahedra: type t occupies the region where
// d[perm[0]] <= d[perm[1]] <= d[perm[2]], d being the point's offset from
// the cube's anchor.
var cellAxisPerm = [6][3]int{
	{0, 1, 2},
	{0, 2, 1},
	{1, 0, 2},
	{1, 2, 0},
	{2, 0, 1},
	{2, 1, 0},
}

// childTypeDelta is this package's concrete realization of the cube-id ->
// type transition table the spec calls for: a fixed, invertible offset
// per cube-id applied (mod 6) to the parent's type to get the child's.
var childTypeDelta = [8]uint8{0, 1, 2, 3, 4, 5, 1, 4}

// ChildType returns the Bey child type for parent type pt and cube-id c.
func ChildType(pt, c uint8) uint8 {
	return (pt + childTypeDelta[c]) % 6
}

// ParentType inverts ChildType given the child's type and cube-id.
func ParentType(ct, c uint8) uint8 {
	return (ct - childTypeDelta[c] + 6) % 6
}

// ErrInvalidCoordinate is returned for coordinates outside the domain or
// not aligned to the addressed level's cell size.
var ErrInvalidCoordinate = fmt.Errorf("tet: invalid coordinate")

// Vec3 is an integer point in the index's coordinate space.
type Vec3 struct {
	X, Y, Z int64
}

func cubeOffsets(cubeID uint8) (dx, dy, dz int64) {
	return int64(cubeID & 1), int64((cubeID >> 1) & 1), int64((cubeID >> 2) & 1)
}

// ChildStandard returns the Bey child at cube-id i (0..7) of t: bisect t's
// bounding cube along every axis (standard octree split) and assign the
// child type via ChildType.
func (t Tet) ChildStandard(cubeID uint8) (Tet, error) {
	if cubeID > 7 {
		return Tet{}, fmt.Errorf("tet: cube id %d out of range 0..7", cubeID)
	}
	if int(t.Level) >= MaxLevel {
		return Tet{}, fmt.Errorf("tet: %w: level already at maximum", ErrInvalidCoordinate)
	}
	half := CellSize(t.Level + 1)
	dx, dy, dz := cubeOffsets(cubeID)
	return Tet{
		X:     t.X + dx*half,
		Y:     t.Y + dy*half,
		Z:     t.Z + dz*half,
		Level: t.Level + 1,
		Type:  ChildType(t.Type, cubeID),
	}, nil
}

// Children returns all 8 Bey children of t.
func (t Tet) Children() ([8]Tet, error) {
	var out [8]Tet
	for i := uint8(0); i < 8; i++ {
		c, err := t.ChildStandard(i)
		if err != nil {
			return out, err
		}
		out[i] = c
	}
	return out, nil
}

// Parent returns t's parent tetrahedron, failing at the root.
func (t Tet) Parent() (Tet, error) {
	if t.Level == 0 {
		return Tet{}, fmt.Errorf("tet: root has no parent")
	}
	parentCell := CellSize(t.Level - 1)
	childCell := CellSize(t.Level)

	px := (t.X / parentCell) * parentCell
	py := (t.Y / parentCell) * parentCell
	pz := (t.Z / parentCell) * parentCell

	var cubeID uint8
	if (t.X-px)/childCell != 0 {
		cubeID |= 1
	}
	if (t.Y-py)/childCell != 0 {
		cubeID |= 2
	}
	if (t.Z-pz)/childCell != 0 {
		cubeID |= 4
	}

	return Tet{X: px, Y: py, Z: pz, Level: t.Level - 1, Type: ParentType(t.Type, cubeID)}, nil
}

// CubeID returns the octree cube-id of t relative to its parent.
func (t Tet) CubeID() (uint8, error) {
	p, err := t.Parent()
	if err != nil {
		return 0, err
	}
	childCell := CellSize(t.Level)
	var cubeID uint8
	if (t.X-p.X)/childCell != 0 {
		cubeID |= 1
	}
	if (t.Y-p.Y)/childCell != 0 {
		cubeID |= 2
	}
	if (t.Z-p.Z)/childCell != 0 {
		cubeID |= 4
	}
	return cubeID, nil
}

// validCoordinate reports whether p lies within the domain.
func validCoordinate(p Vec3) bool {
	if p.X < 0 || p.Y < 0 || p.Z < 0 {
		return false
	}
	if p.X >= MaxCoord || p.Y >= MaxCoord || p.Z >= MaxCoord {
		return false
	}
	return true
}

// typeOf returns the lowest-indexed Kuhn sextant whose axis ordering
// contains offset d, d being a point's position relative to its cube's
// anchor with every component in [0, cube size). The 6 permutations in
// cellAxisPerm exhaustively cover every total order of 3 values, so this
// always finds a match.
func typeOf(d [3]int64) uint8 {
	for t, perm := range cellAxisPerm {
		if d[perm[0]] <= d[perm[1]] && d[perm[1]] <= d[perm[2]] {
			return uint8(t)
		}
	}
	return 0
}

// Locate descends from the root, selecting at each level the unique
// octant containing p, until level is reached, then assigns the Kuhn
// sextant of that leaf cube that actually contains p. Points exactly on
// a split plane are assigned to the lower-coordinate side.
func Locate(p Vec3, level uint8) (Tet, error) {
	if !validCoordinate(p) {
		return Tet{}, fmt.Errorf("tet: locate %+v: %w", p, ErrInvalidCoordinate)
	}
	cur := Root()
	for cur.Level < level {
		half := CellSize(cur.Level + 1)
		var cubeID uint8
		if p.X-cur.X > half {
			cubeID |= 1
		}
		if p.Y-cur.Y > half {
			cubeID |= 2
		}
		if p.Z-cur.Z > half {
			cubeID |= 4
		}
		next, err := cur.ChildStandard(cubeID)
		if err != nil {
			return Tet{}, err
		}
		cur = next
	}
	cur.Type = typeOf([3]int64{p.X - cur.X, p.Y - cur.Y, p.Z - cur.Z})
	return cur, nil
}

// Contains reports whether p falls within t's exact tetrahedron (its
// bounding cube intersected with its Kuhn-ordering sextant).
func (t Tet) Contains(p Vec3) bool {
	size := CellSize(t.Level)
	if p.X < t.X || p.X >= t.X+size {
		return false
	}
	if p.Y < t.Y || p.Y >= t.Y+size {
		return false
	}
	if p.Z < t.Z || p.Z >= t.Z+size {
		return false
	}
	d := [3]int64{p.X - t.X, p.Y - t.Y, p.Z - t.Z}
	perm := cellAxisPerm[t.Type]
	return d[perm[0]] <= d[perm[1]] && d[perm[1]] <= d[perm[2]]
}

// Vertices returns the 4 integer vertices of t using subdivision vertex
// scheme V3 = anchor + (h,h,h); this is only used for subdivision-time
// geometry, never for storage.
func (t Tet) Vertices() [4]Vec3 {
	size := CellSize(t.Level)
	perm := cellAxisPerm[t.Type]

	v0 := Vec3{t.X, t.Y, t.Z}
	v3 := Vec3{t.X + size, t.Y + size, t.Z + size}

	// v1, v2 walk the Kuhn path from the cube's low corner to its high
	// corner one axis at a time, in the order perm dictates.
	v1 := v0
	switch perm[0] {
	case 0:
		v1.X += size
	case 1:
		v1.Y += size
	case 2:
		v1.Z += size
	}
	v2 := v1
	switch perm[1] {
	case 0:
		v2.X += size
	case 1:
		v2.Y += size
	case 2:
		v2.Z += size
	}

	return [4]Vec3{v0, v1, v2, v3}
}

// AABB returns t's bounding cube as (min, max) corners, max exclusive.
func (t Tet) AABB() (min, max Vec3) {
	size := CellSize(t.Level)
	return Vec3{t.X, t.Y, t.Z}, Vec3{t.X + size, t.Y + size, t.Z + size}
}

func (t Tet) String() string {
	return fmt.Sprintf("Tet{x=%d,y=%d,z=%d,level=%d,type=%d}", t.X, t.Y, t.Z, t.Level, t.Type)
}
