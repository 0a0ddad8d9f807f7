// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tet

import (
	"fmt"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

// TMIndex computes t's bit-packed Tetree key by walking the parent chain
// from t to the root and replaying it root-first. TMIndex and FromKey are
// inverses.
func TMIndex(t Tet) (sfckey.Key, error) {
	type step struct{ cubeID, typ uint8 }

	steps := make([]step, 0, t.Level)
	cur := t
	for cur.Level > 0 {
		cubeID, err := cur.CubeID()
		if err != nil {
			return sfckey.Key{}, fmt.Errorf("tet: TMIndex: %w", err)
		}
		steps = append(steps, step{cubeID, cur.Type})

		parent, err := cur.Parent()
		if err != nil {
			return sfckey.Key{}, fmt.Errorf("tet: TMIndex: %w", err)
		}
		cur = parent
	}

	key := sfckey.RootTetree()
	var err error
	for i := len(steps) - 1; i >= 0; i-- {
		key, err = key.ChildTetree(steps[i].cubeID, steps[i].typ)
		if err != nil {
			return sfckey.Key{}, fmt.Errorf("tet: TMIndex: %w", err)
		}
	}
	return key, nil
}

// FromKey reconstructs the Tet a Tetree key addresses, by replaying the
// key's per-level cube-ids down from the root.
func FromKey(k sfckey.Key) (Tet, error) {
	if k.Kind() != sfckey.KindTetree {
		return Tet{}, fmt.Errorf("tet: FromKey called on a %s key", k.Kind())
	}

	cur := Root()
	for lvl := uint8(0); lvl < k.Level(); lvl++ {
		cubeID, _, err := k.TokenTetree(lvl)
		if err != nil {
			return Tet{}, fmt.Errorf("tet: FromKey: %w", err)
		}
		cur, err = cur.ChildStandard(cubeID)
		if err != nil {
			return Tet{}, fmt.Errorf("tet: FromKey: %w", err)
		}
	}
	return cur, nil
}
