// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ghost

import (
	"testing"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

func TestEncodeDecodeElementsRoundTrip(t *testing.T) {
	k1, err := sfckey.RootTetree().ChildTetree(3, 1)
	if err != nil {
		t.Fatalf("ChildTetree: %v", err)
	}
	k2, err := sfckey.RootMorton().ChildMorton(5)
	if err != nil {
		t.Fatalf("ChildMorton: %v", err)
	}

	elems := []Element{
		{OriginRank: 1, Key: k1, Level: 1, Payload: []byte("hello")},
		{OriginRank: 2, Key: k2, Level: 1, Payload: []byte{}},
	}

	data, err := EncodeElements(elems)
	if err != nil {
		t.Fatalf("EncodeElements: %v", err)
	}
	got, err := DecodeElements(data)
	if err != nil {
		t.Fatalf("DecodeElements: %v", err)
	}
	if len(got) != len(elems) {
		t.Fatalf("got %d elements, want %d", len(got), len(elems))
	}
	for i, e := range elems {
		if got[i].OriginRank != e.OriginRank {
			t.Errorf("elem %d: rank = %d, want %d", i, got[i].OriginRank, e.OriginRank)
		}
		if !got[i].Key.Equals(e.Key) {
			t.Errorf("elem %d: key mismatch", i)
		}
		if string(got[i].Payload) != string(e.Payload) {
			t.Errorf("elem %d: payload = %q, want %q", i, got[i].Payload, e.Payload)
		}
	}
}

func TestDecodeElementsRejectsTruncatedFrame(t *testing.T) {
	if _, err := DecodeElements([]byte{0, 0, 0, 1}); err == nil {
		t.Error("expected error for truncated frame claiming 1 element with no payload")
	}
}

func TestEncodeEmptyElements(t *testing.T) {
	data, err := EncodeElements(nil)
	if err != nil {
		t.Fatalf("EncodeElements(nil): %v", err)
	}
	got, err := DecodeElements(data)
	if err != nil {
		t.Fatalf("DecodeElements: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d elements, want 0", len(got))
	}
}
