// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"testing"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

func sampleViolation(t *testing.T, sourceRank uint32) Violation {
	t.Helper()
	local, err := sfckey.RootMorton().ChildMorton(3)
	if err != nil {
		t.Fatalf("ChildMorton: %v", err)
	}
	return Violation{
		LocalKey:   local,
		GhostKey:   sfckey.RootTetree(),
		LocalLevel: 2,
		GhostLevel: 0,
		SourceRank: sourceRank,
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := RefinementRequest{
		RequesterRank: 3,
		Round:         1,
		TimestampMs:   123456,
		Violations:    []Violation{sampleViolation(t, 7), sampleViolation(t, 9)},
	}
	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.RequesterRank != req.RequesterRank || got.Round != req.Round || got.TimestampMs != req.TimestampMs {
		t.Fatalf("header mismatch: got %+v, want %+v", got, req)
	}
	if len(got.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(got.Violations))
	}
	for i, v := range got.Violations {
		want := req.Violations[i]
		if !v.LocalKey.Equals(want.LocalKey) || !v.GhostKey.Equals(want.GhostKey) {
			t.Errorf("violation %d keys mismatch", i)
		}
		if v.LocalLevel != want.LocalLevel || v.GhostLevel != want.GhostLevel || v.SourceRank != want.SourceRank {
			t.Errorf("violation %d scalar fields mismatch: got %+v want %+v", i, v, want)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	k1, _ := sfckey.RootMorton().ChildMorton(0)
	k2, _ := sfckey.RootMorton().ChildMorton(1)
	resp := RefinementResponse{RequesterRank: 2, Round: 0, Refined: []sfckey.Key{k1, k2}}

	data, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got.RequesterRank != resp.RequesterRank || got.Round != resp.Round {
		t.Fatalf("header mismatch: got %+v, want %+v", got, resp)
	}
	if len(got.Refined) != 2 || !got.Refined[0].Equals(k1) || !got.Refined[1].Equals(k2) {
		t.Fatalf("refined keys mismatch: got %v", got.Refined)
	}
}

func TestEmptyResponseRoundTrip(t *testing.T) {
	resp := RefinementResponse{RequesterRank: 5, Round: 2}
	data, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if len(got.Refined) != 0 {
		t.Errorf("expected empty Refined, got %d elements", len(got.Refined))
	}
}

func TestDecodeRequestRejectsTruncatedData(t *testing.T) {
	if _, err := DecodeRequest([]byte{1, 2, 3}); err == nil {
		t.Error("expected error decoding truncated request")
	}
}
