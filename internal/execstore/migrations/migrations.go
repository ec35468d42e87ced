// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package migrations embeds the goose-formatted SQL migrations for
// execstore.PGStore's schema so cmd/flowengine migrate can apply them
// without shelling out to the goose CLI or needing a migrations
// directory on disk at runtime.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
