// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package nodestore

import "sync"

// maxPoolSize caps the number of nodes held in the pool at any time,
// preventing unbounded growth after a large merge pass frees many nodes at
// once.
const maxPoolSize = 4096

// NodePool is a bounded, mutex-guarded free list of *Node. Subdivision and
// merge churn through nodes constantly; reusing their backing Entities
// slices avoids an allocation per node on the hot path.
type NodePool struct {
	pool []*Node
	mu   sync.Mutex
}

// NewNodePool creates an empty pool.
func NewNodePool() *NodePool {
	return &NodePool{pool: make([]*Node, 0)}
}

// Get returns a reset Node, reusing one from the pool if available.
func (p *NodePool) Get() *Node {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.pool)
	if n == 0 {
		return &Node{Entities: make([]EntityID, 0, 4)}
	}

	node := p.pool[n-1]
	p.pool[n-1] = nil
	p.pool = p.pool[:n-1]
	return node
}

// Put returns node to the pool after resetting it.
func (p *NodePool) Put(node *Node) {
	node.reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pool) >= maxPoolSize {
		return
	}
	p.pool = append(p.pool, node)
}

// Size returns the number of nodes currently idle in the pool.
func (p *NodePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pool)
}
