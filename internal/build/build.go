// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package build holds the process's identity, set at link time via
// -ldflags so a binary can report its own version without a build step
// baking it into source.
package build

import "strings"

var (
	Version = "dev"
	AppName = "flowengine"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
