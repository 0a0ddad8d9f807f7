// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package nodestore

import "testing"

func TestNodePoolReusesReturnedNodes(t *testing.T) {
	p := NewNodePool()
	n := p.Get()
	n.AddEntity(EntityID(7))
	n.ChildrenMask = 0xFF

	p.Put(n)
	if p.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", p.Size())
	}

	reused := p.Get()
	if len(reused.Entities) != 0 || reused.ChildrenMask != 0 {
		t.Errorf("reused node not reset: %+v", reused)
	}
	if p.Size() != 0 {
		t.Errorf("Size() = %d after Get, want 0", p.Size())
	}
}

func TestNodePoolCapsSize(t *testing.T) {
	p := NewNodePool()
	for i := 0; i < maxPoolSize+10; i++ {
		p.Put(&Node{})
	}
	if p.Size() != maxPoolSize {
		t.Errorf("Size() = %d, want cap %d", p.Size(), maxPoolSize)
	}
}
