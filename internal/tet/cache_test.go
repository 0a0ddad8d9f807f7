// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tet

import "testing"

func TestKeyCacheMatchesDirectTMIndex(t *testing.T) {
	kc := NewKeyCache(64)

	leaf, err := Locate(Vec3{X: 100, Y: 200, Z: 300}, 6)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	want, err := TMIndex(leaf)
	if err != nil {
		t.Fatalf("TMIndex: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := kc.TMIndex(leaf)
		if err != nil {
			t.Fatalf("KeyCache.TMIndex call %d: %v", i, err)
		}
		if !got.Equals(want) {
			t.Errorf("call %d: cached key %v, want %v", i, got, want)
		}
	}
}

func TestKeyCacheDistinguishesTets(t *testing.T) {
	kc := NewKeyCache(64)

	a, err := Root().ChildStandard(1)
	if err != nil {
		t.Fatalf("ChildStandard: %v", err)
	}
	b, err := Root().ChildStandard(6)
	if err != nil {
		t.Fatalf("ChildStandard: %v", err)
	}

	ka, err := kc.TMIndex(a)
	if err != nil {
		t.Fatalf("TMIndex a: %v", err)
	}
	kb, err := kc.TMIndex(b)
	if err != nil {
		t.Fatalf("TMIndex b: %v", err)
	}
	if ka.Equals(kb) {
		t.Error("distinct tets produced equal cached keys")
	}
}
