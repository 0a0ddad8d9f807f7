// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"testing"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

func TestCheckFlagsLevelDifferenceAboveOne(t *testing.T) {
	c := NewChecker()
	pairs := []BoundaryPair{
		{LocalKey: sfckey.RootMorton(), LocalLevel: 3, GhostKey: sfckey.RootTetree(), GhostLevel: 0, SourceRank: 1},
		{LocalKey: sfckey.RootMorton(), LocalLevel: 2, GhostKey: sfckey.RootTetree(), GhostLevel: 1, SourceRank: 1},
	}
	violations := c.Check(pairs)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	if violations[0].LocalLevel != 3 || violations[0].GhostLevel != 0 {
		t.Errorf("unexpected violation: %+v", violations[0])
	}
}

func TestCheckAllowsLevelDifferenceOfOne(t *testing.T) {
	c := NewChecker()
	pairs := []BoundaryPair{
		{LocalKey: sfckey.RootMorton(), LocalLevel: 1, GhostKey: sfckey.RootTetree(), GhostLevel: 0, SourceRank: 1},
	}
	if got := c.Check(pairs); len(got) != 0 {
		t.Errorf("expected no violations for a diff of 1, got %d", len(got))
	}
}

func TestCheckEmptyInput(t *testing.T) {
	c := NewChecker()
	if got := c.Check(nil); len(got) != 0 {
		t.Errorf("expected no violations, got %d", len(got))
	}
}
