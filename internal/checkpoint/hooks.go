// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package checkpoint

import (
	"context"
	"time"

	"github.com/hellblazer/luciferase/pkg/log"
)

type queryTimeKey struct{}

// queryLogHooks satisfies sqlhooks.Hooks, logging each checkpoint query and
// its elapsed time the way the teacher's repository package does.
type queryLogHooks struct{}

func (h *queryLogHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("checkpoint SQL query %s %q", query, args)
	return context.WithValue(ctx, queryTimeKey{}, time.Now()), nil
}

func (h *queryLogHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimeKey{}).(time.Time); ok {
		log.Debugf("checkpoint SQL took: %s", time.Since(begin))
	}
	return ctx, nil
}
