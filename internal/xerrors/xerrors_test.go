// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package xerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecoveryPhaseFailedErrorUnwraps(t *testing.T) {
	err := &RecoveryPhaseFailedError{Phase: "REBALANCING", Cause: ErrBarrierTimeout}

	if !errors.Is(err, ErrBarrierTimeout) {
		t.Fatalf("errors.Is did not find wrapped sentinel, err=%v", err)
	}
}

func TestGhostValidationFailedErrorMessage(t *testing.T) {
	err := &GhostValidationFailedError{Duplicates: 2, Orphans: 1, Gaps: 0}

	want := "ghost validation failed: 2 duplicate(s), 1 orphan(s), 0 gap(s)"
	if got := err.Error(); got != want {
		t.Errorf("wrong message\ngot:  %s\nwant: %s", got, want)
	}
}

func TestWrappedSentinelDispatch(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrEntityNotFound)

	if !errors.Is(wrapped, ErrEntityNotFound) {
		t.Error("expected errors.Is to match wrapped ErrEntityNotFound")
	}
}
