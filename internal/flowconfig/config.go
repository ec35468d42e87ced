// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package flowconfig loads the engine's layered configuration:
// environment variables override a config file, which overrides the
// defaults below. No command-line flags are bound to individual settings;
// the --config flag only chooses the file. This adapts the teacher's
// layered precedence in internal/admin/config.go, implemented with viper
// instead of a hand-rolled setup() pipeline.
package flowconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TierConfig holds the admission-control defaults for one tenant tier.
type TierConfig struct {
	MaxConcurrentJobs int    `mapstructure:"max_concurrent_jobs"`
	MaxJobsPerHour    int    `mapstructure:"max_jobs_per_hour"`
	Queue             string `mapstructure:"queue"`
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`
}

// GatewayConfig holds the remote-agent gateway's tunables.
type GatewayConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

// Config is the root configuration object for the flowengine process.
type Config struct {
	Host             string                 `mapstructure:"host"`
	Port             int                    `mapstructure:"port"`
	Debug            bool                   `mapstructure:"debug"`
	LogEncoding      string                 `mapstructure:"log_encoding"`
	DatabaseURL      string                 `mapstructure:"database_url"`
	RedisAddr        string                 `mapstructure:"redis_addr"`
	// OperatorKeyHash is the bcrypt hash of the bearer token required on
	// every /v1/tenants/{tenantId} route. Empty runs the API unauthenticated
	// (local development only); see httpapi.RequireAPIKey.
	OperatorKeyHash  string                 `mapstructure:"operator_key_hash"`
	// OperatorRole is the auth.Role a successful OperatorKeyHash match
	// grants: "admin", "manager", "operator", or "viewer". Defaults to
	// "admin".
	OperatorRole     string                 `mapstructure:"operator_role"`
	// TokenSecretFile, when set, is the directory tokensecret.FileProvider
	// reads (or generates, on first run) the session-token signing key
	// from. Takes precedence over TokenSecretStatic. Leave both unset to
	// disable session-token issuance entirely.
	TokenSecretFile   string                 `mapstructure:"token_secret_file"`
	// TokenSecretStatic, when set, is used directly as the session-token
	// signing key via tokensecret.StaticProvider. Prefer TokenSecretFile
	// in production so the key is generated rather than configured by hand.
	TokenSecretStatic string                 `mapstructure:"token_secret_static"`
	MaxParallelSteps int                    `mapstructure:"max_parallel_steps"`
	Tiers            map[string]TierConfig  `mapstructure:"tiers"`
	Gateway          GatewayConfig          `mapstructure:"gateway"`
}

// Load reads configuration from (in increasing precedence) built-in
// defaults, an optional config file at path, and FLOWENGINE_-prefixed
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("flowengine")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("flowconfig: reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("flowconfig: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)
	v.SetDefault("log_encoding", "console")
	v.SetDefault("operator_role", "admin")
	v.SetDefault("max_parallel_steps", 4)

	v.SetDefault("tiers.free.max_concurrent_jobs", 5)
	v.SetDefault("tiers.free.max_jobs_per_hour", 100)
	v.SetDefault("tiers.free.queue", "workflow-exec-free")
	v.SetDefault("tiers.free.worker_concurrency", 5)

	v.SetDefault("tiers.standard.max_concurrent_jobs", 20)
	v.SetDefault("tiers.standard.max_jobs_per_hour", 1000)
	v.SetDefault("tiers.standard.queue", "workflow-exec-standard")
	v.SetDefault("tiers.standard.worker_concurrency", 20)

	v.SetDefault("tiers.enterprise.max_concurrent_jobs", 100)
	v.SetDefault("tiers.enterprise.max_jobs_per_hour", 10000)
	v.SetDefault("tiers.enterprise.queue", "workflow-exec-enterprise")
	v.SetDefault("tiers.enterprise.worker_concurrency", 100)

	v.SetDefault("gateway.heartbeat_interval", 30*time.Second)
	v.SetDefault("gateway.heartbeat_timeout", 90*time.Second)
	v.SetDefault("gateway.command_timeout", 30*time.Second)
	v.SetDefault("gateway.max_retries", 3)
	v.SetDefault("gateway.retry_delay", 5*time.Second)
}
