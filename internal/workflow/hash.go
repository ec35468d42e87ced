// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash canonicalises def (keys sorted lexicographically, no insignificant
// whitespace) and returns the hex-encoded SHA-256 digest, per
// SPEC_FULL.md §4.A. The standard library's encoding/json already
// produces compact, whitespace-free output; canonical key ordering is
// obtained by round-tripping through map[string]any, whose keys
// encoding/json sorts lexicographically since Go 1.12. No third-party
// library in the example pack offers canonical-JSON encoding, so this
// one concern is implemented on the standard library (see DESIGN.md).
func Hash(def Definition) (string, error) {
	canonical, err := canonicalize(def)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(def Definition) ([]byte, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, err
	}
	// Round-trip through map[string]any: encoding/json marshals its
	// keys in sorted order, which is the canonical form we need.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
