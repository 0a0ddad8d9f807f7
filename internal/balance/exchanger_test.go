// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/xerrors"
)

type fakeTransport struct {
	respond func(peerRank uint32, req RefinementRequest) (RefinementResponse, error)
}

func (f fakeTransport) Request(_ context.Context, peerRank uint32, data []byte) ([]byte, error) {
	req, err := DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	resp, err := f.respond(peerRank, req)
	if err != nil {
		return nil, err
	}
	return EncodeResponse(resp)
}

func boundaryPair(sourceRank uint32, localLevel, ghostLevel uint8) BoundaryPair {
	local, _ := sfckey.RootMorton().ChildMorton(0)
	return BoundaryPair{LocalKey: local, LocalLevel: localLevel, GhostKey: sfckey.RootTetree(), GhostLevel: ghostLevel, SourceRank: sourceRank}
}

func TestRunConvergesWhenPeerRefines(t *testing.T) {
	refinedKey, _ := sfckey.RootMorton().ChildMorton(1)
	transport := fakeTransport{respond: func(peerRank uint32, req RefinementRequest) (RefinementResponse, error) {
		return RefinementResponse{RequesterRank: req.RequesterRank, Round: req.Round, Refined: []sfckey.Key{refinedKey}}, nil
	}}
	e := NewExchanger(0, transport, DefaultConfig(4))
	pairs := []BoundaryPair{boundaryPair(1, 3, 0)}

	result, err := e.Run(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Refined) != 1 || !result.Refined[0].Equals(refinedKey) {
		t.Fatalf("expected 1 refined key, got %v", result.Refined)
	}
	if result.RoundsRun == 0 {
		t.Error("expected at least one round to run")
	}
}

func TestRunNoViolationsSkipsAllRounds(t *testing.T) {
	called := false
	transport := fakeTransport{respond: func(uint32, RefinementRequest) (RefinementResponse, error) {
		called = true
		return RefinementResponse{}, nil
	}}
	e := NewExchanger(0, transport, DefaultConfig(4))

	result, err := e.Run(context.Background(), []BoundaryPair{boundaryPair(1, 1, 0)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("expected no peer requests when there are no violations")
	}
	if result.RoundsRun != 0 {
		t.Errorf("RoundsRun = %d, want 0", result.RoundsRun)
	}
}

func TestRunContinuesAfterTimeoutWithPartialResults(t *testing.T) {
	transport := fakeTransport{respond: func(uint32, RefinementRequest) (RefinementResponse, error) {
		return RefinementResponse{}, context.DeadlineExceeded
	}}
	cfg := DefaultConfig(2)
	cfg.RoundTimeout = 10 * time.Millisecond
	cfg.RetryInterval = time.Millisecond
	e := NewExchanger(0, transport, cfg)

	result, err := e.Run(context.Background(), []BoundaryPair{boundaryPair(1, 3, 0)})
	if err != nil {
		t.Fatalf("expected graceful degradation on timeout, got error: %v", err)
	}
	if result.RemainingLen != 0 {
		t.Errorf("expected the violation to have been dropped from the result set after the round ran, got %d remaining", result.RemainingLen)
	}
}

func TestRunSurfacesPermanentPeerError(t *testing.T) {
	transport := fakeTransport{respond: func(uint32, RefinementRequest) (RefinementResponse, error) {
		return RefinementResponse{}, errors.New("connection refused")
	}}
	cfg := DefaultConfig(2)
	cfg.RetryInterval = time.Millisecond
	e := NewExchanger(0, transport, cfg)

	_, err := e.Run(context.Background(), []BoundaryPair{boundaryPair(1, 3, 0)})
	if !errors.Is(err, xerrors.ErrPeerUnreachable) {
		t.Fatalf("expected ErrPeerUnreachable, got %v", err)
	}
}
