// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vectormesh/flowengine/internal/build"
)

// version is set at build time via -ldflags on build.Version.
var version = build.Version

func main() {
	var cfgFile string

	root := &cobra.Command{
		Use:   "flowengine",
		Short: "Multi-tenant data-integration control plane.",
		Long:  "flowengine runs the control plane that publishes workflows, admits and orchestrates their executions, and brokers commands to remote connector agents.",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus FLOWENGINE_ environment variables)")

	root.AddCommand(newServeCmd(&cfgFile))
	root.AddCommand(newMigrateCmd(&cfgFile))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
