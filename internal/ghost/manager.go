// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ghost

import (
	"context"
	"fmt"
	"sync"

	"github.com/hellblazer/luciferase/pkg/log"
)

// PeerTransport sends a ghost-sync request to peerRank and returns its
// encoded response. Production callers wrap *pkg/nats.Client.Request;
// tests supply a fake.
type PeerTransport interface {
	Request(ctx context.Context, peerRank uint32, req []byte) ([]byte, error)
}

// SyncSuccessFunc is invoked once per peer rank that ack'd a sync round.
type SyncSuccessFunc func(rank uint32)

// SyncFailureFunc is invoked once per peer rank whose sync round failed.
type SyncFailureFunc func(rank uint32, cause error)

// Manager owns one partition's ghost Set and drives sync rounds against its
// neighbor ranks over a PeerTransport.
type Manager struct {
	mu        sync.RWMutex
	localRank uint32
	set       *Set
	transport PeerTransport

	onSuccess SyncSuccessFunc
	onFailure SyncFailureFunc
}

// NewManager returns a Manager for localRank, syncing over transport.
func NewManager(localRank uint32, transport PeerTransport) *Manager {
	return &Manager{
		localRank: localRank,
		set:       NewSet(),
		transport: transport,
	}
}

// OnSyncSuccess registers the callback invoked after each peer ack.
func (m *Manager) OnSyncSuccess(f SyncSuccessFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSuccess = f
}

// OnSyncFailure registers the callback invoked after each failed peer sync.
func (m *Manager) OnSyncFailure(f SyncFailureFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailure = f
}

// Sync requests the current boundary ghost layer from each of peers; each
// successful response replaces that peer's previous entries in the local
// Set. A request's own encoded
// payload is the empty pull-request frame; peers are expected to respond
// with an EncodeElements frame describing the boundary nodes they own that
// abut localRank's partition.
func (m *Manager) Sync(ctx context.Context, peers []uint32) {
	for _, peer := range peers {
		m.syncOne(ctx, peer)
	}
}

func (m *Manager) syncOne(ctx context.Context, peer uint32) {
	m.mu.RLock()
	transport := m.transport
	m.mu.RUnlock()

	req, err := EncodeElements(nil)
	if err != nil {
		m.fail(peer, fmt.Errorf("ghost: encode request: %w", err))
		return
	}

	resp, err := transport.Request(ctx, peer, req)
	if err != nil {
		m.fail(peer, err)
		return
	}

	elems, err := DecodeElements(resp)
	if err != nil {
		m.fail(peer, err)
		return
	}

	m.mu.Lock()
	m.set.Remove(peer)
	for _, e := range elems {
		m.set.Put(e)
	}
	m.mu.Unlock()

	m.succeed(peer)
}

func (m *Manager) succeed(rank uint32) {
	m.mu.RLock()
	cb := m.onSuccess
	m.mu.RUnlock()
	if cb != nil {
		cb(rank)
	} else {
		log.Debugf("ghost: sync with rank %d ok", rank)
	}
}

func (m *Manager) fail(rank uint32, cause error) {
	m.mu.RLock()
	cb := m.onFailure
	m.mu.RUnlock()
	if cb != nil {
		cb(rank, cause)
	} else {
		log.Warnf("ghost: sync with rank %d failed: %v", rank, cause)
	}
}

// GetGhostLayer returns every ghost element currently held, across all
// origin ranks.
func (m *Manager) GetGhostLayer() []Element {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.All()
}

// Set returns the Manager's underlying ghost Set, for direct inspection by
// the Validator and by Forest wiring.
func (m *Manager) Set() *Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set
}
