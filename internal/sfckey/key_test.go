// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sfckey

import "testing"

func TestMortonChildParentRoundTrip(t *testing.T) {
	root := RootMorton()
	child, err := root.ChildMorton(5)
	if err != nil {
		t.Fatalf("ChildMorton: %v", err)
	}
	if child.Level() != 1 {
		t.Fatalf("level = %d, want 1", child.Level())
	}

	got, err := child.Parent()
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if !got.Equals(root) {
		t.Errorf("child.Parent() = %v, want %v", got, root)
	}

	cubeID, err := child.TokenMorton(0)
	if err != nil {
		t.Fatalf("TokenMorton: %v", err)
	}
	if cubeID != 5 {
		t.Errorf("cubeID = %d, want 5", cubeID)
	}
}

func TestMortonRootHasNoParent(t *testing.T) {
	if _, err := RootMorton().Parent(); err == nil {
		t.Error("expected error taking parent of root")
	}
}

func TestMortonDeepChildChain(t *testing.T) {
	k := RootMorton()
	ids := []uint8{1, 7, 0, 3, 6}
	var err error
	for _, id := range ids {
		k, err = k.ChildMorton(id)
		if err != nil {
			t.Fatalf("ChildMorton(%d): %v", id, err)
		}
	}
	if k.Level() != uint8(len(ids)) {
		t.Fatalf("level = %d, want %d", k.Level(), len(ids))
	}
	for i, want := range ids {
		got, err := k.TokenMorton(uint8(i))
		if err != nil {
			t.Fatalf("TokenMorton(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("TokenMorton(%d) = %d, want %d", i, got, want)
		}
	}

	// Walking back up via Parent should retrace the same chain.
	for i := len(ids) - 1; i >= 0; i-- {
		var err error
		k, err = k.Parent()
		if err != nil {
			t.Fatalf("Parent at step %d: %v", i, err)
		}
	}
	if !k.Equals(RootMorton()) {
		t.Errorf("final parent walk = %v, want root", k)
	}
}

func TestTetreeChildParentRoundTrip(t *testing.T) {
	root := RootTetree()
	child, err := root.ChildTetree(3, 2)
	if err != nil {
		t.Fatalf("ChildTetree: %v", err)
	}
	if child.Level() != 1 {
		t.Fatalf("level = %d, want 1", child.Level())
	}

	cubeID, typ, err := child.TokenTetree(0)
	if err != nil {
		t.Fatalf("TokenTetree: %v", err)
	}
	if cubeID != 3 || typ != 2 {
		t.Errorf("token = (%d,%d), want (3,2)", cubeID, typ)
	}

	parent, err := child.Parent()
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if !parent.Equals(root) {
		t.Errorf("child.Parent() = %v, want root", parent)
	}
}

func TestTetreeDeepChildChainSurvivesWordBoundary(t *testing.T) {
	// 11 levels * 6 bits = 66 bits, crossing the low/high 64-bit boundary.
	k := RootTetree()
	type token struct{ cube, typ uint8 }
	tokens := []token{
		{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4},
		{5, 5}, {6, 0}, {7, 1}, {0, 2}, {1, 3}, {2, 4},
	}
	var err error
	for _, tok := range tokens {
		k, err = k.ChildTetree(tok.cube, tok.typ)
		if err != nil {
			t.Fatalf("ChildTetree%v: %v", tok, err)
		}
	}
	for i, want := range tokens {
		cube, typ, err := k.TokenTetree(uint8(i))
		if err != nil {
			t.Fatalf("TokenTetree(%d): %v", i, err)
		}
		if cube != want.cube || typ != want.typ {
			t.Errorf("level %d token = (%d,%d), want (%d,%d)", i, cube, typ, want.cube, want.typ)
		}
	}
}

func TestCompareOrdersAncestorBeforeDescendant(t *testing.T) {
	root := RootMorton()
	child, _ := root.ChildMorton(0)
	grandchild, _ := child.ChildMorton(4)

	if root.Compare(child) >= 0 {
		t.Error("expected root < child")
	}
	if child.Compare(grandchild) >= 0 {
		t.Error("expected child < grandchild")
	}
}

func TestIsAncestorOf(t *testing.T) {
	root := RootTetree()
	child, _ := root.ChildTetree(2, 1)
	grandchild, _ := child.ChildTetree(5, 4)
	unrelatedChild, _ := root.ChildTetree(6, 0)

	if !root.IsAncestorOf(grandchild) {
		t.Error("expected root to be an ancestor of grandchild")
	}
	if !child.IsAncestorOf(grandchild) {
		t.Error("expected child to be an ancestor of grandchild")
	}
	if child.IsAncestorOf(unrelatedChild) {
		t.Error("did not expect child to be an ancestor of an unrelated sibling")
	}
	if grandchild.IsAncestorOf(root) {
		t.Error("a deeper key must never be an ancestor of a shallower one")
	}
}

func TestChildRejectsOutOfRangeCubeID(t *testing.T) {
	if _, err := RootMorton().ChildMorton(8); err == nil {
		t.Error("expected error for cube id 8")
	}
	if _, err := RootTetree().ChildTetree(8, 0); err == nil {
		t.Error("expected error for cube id 8")
	}
	if _, err := RootTetree().ChildTetree(0, 6); err == nil {
		t.Error("expected error for tet type 6")
	}
}
