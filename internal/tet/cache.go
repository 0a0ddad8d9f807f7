// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tet

import (
	"fmt"
	"time"

	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/pkg/lrucache"
)

// keyCacheTTL bounds how long a resolved tm_index may be reused before a
// fresh lookup is forced; refinement-time tet geometry never changes for a
// given (x,y,z,level,type), so this is generous.
const keyCacheTTL = 10 * time.Minute

// KeyCache memoizes TMIndex resolution per parent chain. Spec.md's node
// store resolves tm_index lazily and idempotently as nodes are visited
// during subdivision and range queries, so the same Tet is frequently
// re-addressed along a shared ancestor chain; caching collapses the O(level)
// walk to O(1) on repeat lookups.
type KeyCache struct {
	cache *lrucache.Cache
}

// NewKeyCache creates a cache bounded by maxEntries entries (each entry
// costs a fixed, small size unit so maxmemory here is effectively an entry
// count).
func NewKeyCache(maxEntries int) *KeyCache {
	return &KeyCache{cache: lrucache.New(maxEntries)}
}

func tetCacheKey(t Tet) string {
	return fmt.Sprintf("%d,%d,%d,%d,%d", t.X, t.Y, t.Z, t.Level, t.Type)
}

// TMIndex resolves t's Tetree key, consulting the cache first.
func (kc *KeyCache) TMIndex(t Tet) (sfckey.Key, error) {
	var resolveErr error
	v := kc.cache.Get(tetCacheKey(t), func() (interface{}, time.Duration, int) {
		key, err := TMIndex(t)
		if err != nil {
			resolveErr = err
			return sfckey.Key{}, keyCacheTTL, 1
		}
		return key, keyCacheTTL, 1
	})
	if resolveErr != nil {
		return sfckey.Key{}, resolveErr
	}
	return v.(sfckey.Key), nil
}
