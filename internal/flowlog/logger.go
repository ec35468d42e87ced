// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package flowlog wires the engine's structured logging. It follows the
// teacher's tee-to-file convention (see the historical teeLogger in
// dagu's agent package) but writes to stderr rather than stdout, builds
// on zap instead of the stdlib log package, and adds tenant/execution
// scoped child loggers.
package flowlog

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures the logger returned by New.
type Option func(*options)

type options struct {
	debug    bool
	logFile  *os.File
	encoding string
}

// WithDebug enables debug-level logging.
func WithDebug() Option {
	return func(o *options) { o.debug = true }
}

// WithLogFile tees output to the given file in addition to stderr.
func WithLogFile(f *os.File) Option {
	return func(o *options) { o.logFile = f }
}

// WithEncoding selects "json" or "console" output. Defaults to "console".
func WithEncoding(enc string) Option {
	return func(o *options) { o.encoding = enc }
}

// New builds the root *zap.Logger for the process.
func New(opts ...Option) *zap.Logger {
	o := &options{encoding: "console"}
	for _, fn := range opts {
		fn(o)
	}

	level := zap.InfoLevel
	if o.debug {
		level = zap.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "ts"

	var encoder zapcore.Encoder
	if o.encoding == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if o.logFile != nil {
		writers = append(writers, zapcore.AddSync(o.logFile))
	}
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level)

	return zap.New(core, zap.AddCaller())
}

type ctxKey struct{}

// Into returns a context carrying lg, retrievable with From.
func Into(ctx context.Context, lg *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, lg)
}

// From returns the logger stored in ctx, or zap's global no-op logger
// if none was attached.
func From(ctx context.Context) *zap.Logger {
	if lg, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && lg != nil {
		return lg
	}
	return zap.NewNop()
}

// WithTenant returns a child logger tagged with the tenant id.
func WithTenant(lg *zap.Logger, tenantID string) *zap.Logger {
	return lg.With(zap.String("tenant_id", tenantID))
}

// WithExecution returns a child logger tagged with tenant and execution ids.
func WithExecution(lg *zap.Logger, tenantID, executionID string) *zap.Logger {
	return lg.With(zap.String("tenant_id", tenantID), zap.String("execution_id", executionID))
}
