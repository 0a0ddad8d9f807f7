// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sfckey

import "testing"

func TestMortonBinaryRoundTrip(t *testing.T) {
	k := RootMorton()
	for _, c := range []uint8{5, 2, 7} {
		var err error
		k, err = k.ChildMorton(c)
		if err != nil {
			t.Fatalf("ChildMorton: %v", err)
		}
	}
	data, err := k.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var got Key
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if !got.Equals(k) {
		t.Errorf("round trip = %v, want %v", got, k)
	}
}

func TestTetreeBinaryRoundTrip(t *testing.T) {
	k := RootTetree()
	for _, tok := range [][2]uint8{{3, 1}, {6, 4}, {0, 5}} {
		var err error
		k, err = k.ChildTetree(tok[0], tok[1])
		if err != nil {
			t.Fatalf("ChildTetree: %v", err)
		}
	}
	data, err := k.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var got Key
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if !got.Equals(k) {
		t.Errorf("round trip = %v, want %v", got, k)
	}
}

func TestUnmarshalBinaryRejectsBadLength(t *testing.T) {
	var k Key
	if err := k.UnmarshalBinary([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short payload")
	}
}
