// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectormesh/flowengine/internal/execstore/migrations"
	"github.com/vectormesh/flowengine/internal/flowconfig"
)

func TestVersionCommand_PrintsVersion(t *testing.T) {
	var out bytes.Buffer
	root := &cobra.Command{Use: "flowengine"}
	root.AddCommand(&cobra.Command{
		Use: "version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version + "\n"))
			return err
		},
	})
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), version)
}

func TestMigrationsFS_ContainsGooseAnnotatedSchema(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	raw, err := migrations.FS.ReadFile(entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "-- +goose Up")
	assert.Contains(t, string(raw), "-- +goose Down")
}

func TestResolveTokenSecret_DisabledWhenUnconfigured(t *testing.T) {
	secret, err := resolveTokenSecret(context.Background(), &flowconfig.Config{})
	require.NoError(t, err)
	assert.False(t, secret.IsValid())
}

func TestResolveTokenSecret_UsesStatic(t *testing.T) {
	secret, err := resolveTokenSecret(context.Background(), &flowconfig.Config{TokenSecretStatic: "a-configured-secret"})
	require.NoError(t, err)
	assert.True(t, secret.IsValid())
}

func TestResolveTokenSecret_FileTakesPrecedenceOverStatic(t *testing.T) {
	dir := t.TempDir()
	secret, err := resolveTokenSecret(context.Background(), &flowconfig.Config{
		TokenSecretFile:   dir,
		TokenSecretStatic: "a-configured-secret",
	})
	require.NoError(t, err)
	assert.True(t, secret.IsValid())
	assert.NotEqual(t, []byte("a-configured-secret"), secret.SigningKey())
}
