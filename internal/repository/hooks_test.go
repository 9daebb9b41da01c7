// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHooksBeforeAfter(t *testing.T) {
	h := &Hooks{}

	ctx, err := h.Before(context.Background(), "SELECT 1", 1, 2)
	require.NoError(t, err)

	_, ok := ctx.Value(hookKey{}).(time.Time)
	require.True(t, ok)

	ctx, err = h.After(ctx, "SELECT 1", 1, 2)
	require.NoError(t, err)
	require.NotNil(t, ctx)
}

func TestHooksAfterWithoutBeforeDoesNotPanic(t *testing.T) {
	h := &Hooks{}
	ctx, err := h.After(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.NotNil(t, ctx)
}
