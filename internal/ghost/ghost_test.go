// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ghost

import (
	"testing"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

func TestSetPutGetRemove(t *testing.T) {
	s := NewSet()
	key, _ := sfckey.RootTetree().ChildTetree(2, 3)
	s.Put(Element{OriginRank: 5, Key: key, Level: 1, Payload: []byte("p")})

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	e, ok := s.Get(5, key)
	if !ok || string(e.Payload) != "p" {
		t.Fatalf("Get() = %+v, %v, want payload 'p'", e, ok)
	}

	s.Remove(5)
	if s.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", s.Len())
	}
	if _, ok := s.Get(5, key); ok {
		t.Error("Get() after Remove should report not found")
	}
}

func TestSetChecksumStable(t *testing.T) {
	e1 := Element{Payload: []byte("same")}
	e2 := Element{Payload: []byte("same")}
	e3 := Element{Payload: []byte("different")}

	if e1.checksum() != e2.checksum() {
		t.Error("identical payloads should checksum identically")
	}
	if e1.checksum() == e3.checksum() {
		t.Error("different payloads should checksum differently")
	}
}

func TestSetOriginsAndElements(t *testing.T) {
	s := NewSet()
	k1, _ := sfckey.RootTetree().ChildTetree(0, 0)
	k2, _ := sfckey.RootTetree().ChildTetree(1, 0)
	s.Put(Element{OriginRank: 1, Key: k1})
	s.Put(Element{OriginRank: 1, Key: k2})
	s.Put(Element{OriginRank: 2, Key: k1})

	origins := s.Origins()
	if len(origins) != 2 {
		t.Fatalf("Origins() = %v, want 2 distinct ranks", origins)
	}
	if len(s.Elements(1)) != 2 {
		t.Errorf("Elements(1) = %d, want 2", len(s.Elements(1)))
	}
	if len(s.All()) != 3 {
		t.Errorf("All() = %d, want 3", len(s.All()))
	}
}
