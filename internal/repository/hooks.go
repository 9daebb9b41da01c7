// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"time"

	"github.com/flyingrobots/blacklight/pkg/log"
)

type hookKey struct{}

// Hooks satisfies the sqlhooks.Hooks interface and gives us per-query
// timing in the debug log without touching every call site.
type Hooks struct{}

// Before hook prints the query with its args and stashes the start time.
func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("SQL query %s %q", query, args)
	return context.WithValue(ctx, hookKey{}, time.Now()), nil
}

// After hook retrieves the timestamp registered by Before and logs elapsed time.
func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(hookKey{}).(time.Time); ok {
		log.Debugf("took %s", time.Since(begin))
	}
	return ctx, nil
}
