// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sandbox is the Expression Sandbox external collaborator of
// SPEC_FULL.md §4.D: evaluate(code, bindings, timeout) -> value | error,
// with no ambient I/O and wall-clock-bounded execution.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/itchyny/gojq"
)

// ErrTimeout is returned when evaluation does not finish within the
// caller's timeout.
var ErrTimeout = errors.New("sandbox: evaluation timed out")

type cacheKey struct {
	code string
	vars string
}

// Sandbox evaluates jq-style expressions against bound input, compiling
// and caching queries by (source text, variable names).
type Sandbox struct {
	cache *lru.Cache[cacheKey, *gojq.Code]
}

// New returns a Sandbox whose compiled-query cache holds up to
// cacheSize entries.
func New(cacheSize int) (*Sandbox, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[cacheKey, *gojq.Code](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Sandbox{cache: cache}, nil
}

func varNames(vars map[string]any) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Sandbox) compile(code string, names []string) (*gojq.Code, error) {
	key := cacheKey{code: code, vars: strings.Join(names, ",")}
	if compiled, ok := s.cache.Get(key); ok {
		return compiled, nil
	}

	query, err := gojq.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("sandbox: parse: %w", err)
	}
	compiled, err := gojq.Compile(query, gojq.WithVariables(names))
	if err != nil {
		return nil, fmt.Errorf("sandbox: compile: %w", err)
	}
	s.cache.Add(key, compiled)
	return compiled, nil
}

// Evaluate runs code against input, bounded by timeout. bindings are
// exposed to the expression as named variables (jq `$name` syntax).
// gojq's evaluator has no reachable filesystem, network, or environment
// access, satisfying the no-ambient-IO requirement.
func (s *Sandbox) Evaluate(ctx context.Context, code string, input any, bindings map[string]any, timeout time.Duration) (any, error) {
	names := varNames(bindings)
	compiled, err := s.compile(code, names)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = bindings[name]
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	iter := compiled.RunWithContext(runCtx, input, values...)

	type result struct {
		value any
		err   error
		ok    bool
	}
	resultCh := make(chan result, 1)

	go func() {
		v, ok := iter.Next()
		if !ok {
			resultCh <- result{}
			return
		}
		if evalErr, isErr := v.(error); isErr {
			resultCh <- result{err: fmt.Errorf("sandbox: evaluation error: %w", evalErr)}
			return
		}
		resultCh <- result{value: v, ok: true}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, r.err
		}
		if !r.ok {
			return nil, nil
		}
		return r.value, nil
	case <-runCtx.Done():
		return nil, ErrTimeout
	}
}
