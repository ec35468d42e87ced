// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectormesh/flowengine/internal/execstore"
)

func TestLogger_AppendsOrderedHistory(t *testing.T) {
	store := execstore.NewMemStore()
	logger := New(store)
	ctx := context.Background()

	require.NoError(t, logger.ExecutionStarted(ctx, "e1"))
	require.NoError(t, logger.StepStarted(ctx, "e1", "s1", 1))
	require.NoError(t, logger.StepCompleted(ctx, "e1", "s1", 1))
	require.NoError(t, logger.ExecutionCompleted(ctx, "e1"))

	history, err := logger.History(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, execstore.EventExecutionStarted, history[0].EventType)
	assert.Equal(t, execstore.EventExecutionCompleted, history[3].EventType)
}
