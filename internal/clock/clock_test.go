// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package clock

import "testing"

func TestManualTimeSourceAdvance(t *testing.T) {
	ts := NewManualTimeSource(1000)

	if got := ts.NowMillis(); got != 1000 {
		t.Fatalf("got %d, want 1000", got)
	}

	ts.Advance(500)
	if got := ts.NowMillis(); got != 1500 {
		t.Fatalf("got %d, want 1500", got)
	}

	ts.Set(42)
	if got := ts.NowMillis(); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestSystemTimeSourceMonotonicallyNonDecreasing(t *testing.T) {
	var ts TimeSource = SystemTimeSource{}

	a := ts.NowMillis()
	b := ts.NowMillis()
	if b < a {
		t.Errorf("expected non-decreasing wall clock, got %d then %d", a, b)
	}
}
