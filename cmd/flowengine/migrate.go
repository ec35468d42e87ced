// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/vectormesh/flowengine/internal/execstore/migrations"
	"github.com/vectormesh/flowengine/internal/flowconfig"
)

func newMigrateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the execution store's Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flowconfig.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("migrate: loading config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("migrate: database_url is not configured")
			}
			return runMigrate(cmd.Context(), cfg.DatabaseURL)
		},
	}
}

// runMigrate applies every pending migration under
// internal/execstore/migrations through goose. goose tracks applied
// versions itself in a goose_db_version table, so this is safe to run
// repeatedly and against a partially-migrated database.
func runMigrate(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: connecting: %w", err)
	}
	defer db.Close()

	if err := goose.SetBaseFS(migrations.FS); err != nil {
		return fmt.Errorf("migrate: setting migrations filesystem: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: applying migrations: %w", err)
	}
	return nil
}
