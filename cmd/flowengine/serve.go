// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vectormesh/flowengine/internal/admission"
	"github.com/vectormesh/flowengine/internal/auth"
	"github.com/vectormesh/flowengine/internal/auth/tokensecret"
	"github.com/vectormesh/flowengine/internal/build"
	"github.com/vectormesh/flowengine/internal/connector"
	"github.com/vectormesh/flowengine/internal/dispatch"
	"github.com/vectormesh/flowengine/internal/eventlog"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/flowconfig"
	"github.com/vectormesh/flowengine/internal/flowlog"
	"github.com/vectormesh/flowengine/internal/gateway"
	"github.com/vectormesh/flowengine/internal/httpapi"
	"github.com/vectormesh/flowengine/internal/metrics"
	"github.com/vectormesh/flowengine/internal/orchestrator"
	"github.com/vectormesh/flowengine/internal/sandbox"
	"github.com/vectormesh/flowengine/internal/telemetry"
	"github.com/vectormesh/flowengine/internal/workflow"
)

const sandboxCacheSize = 256

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfgFile)
		},
	}
}

func runServe(ctx context.Context, cfgFile string) error {
	cfg, err := flowconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("serve: loading config: %w", err)
	}

	logger := flowlog.New(logOpts(cfg)...)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewProm(reg)
	reg.MustRegister(metrics.NewInfoCollector(version))

	execs, err := newExecutionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("serve: execution store: %w", err)
	}
	// workflow.Store has no Postgres-backed implementation in this tree
	// (only MemStore); workflow definitions are process-local regardless
	// of DatabaseURL until one is added.
	workflows := workflow.NewMemStore()
	events := eventlog.New(execs)

	connectors := connector.NewRegistry()
	cloudDriver := connector.NewMemDriver()

	sb, err := sandbox.New(sandboxCacheSize)
	if err != nil {
		return fmt.Errorf("serve: sandbox: %w", err)
	}

	gw := gateway.New(connectors, logger, gateway.WithHeartbeatTimeout(cfg.Gateway.HeartbeatTimeout))
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("serve: starting gateway: %w", err)
	}
	defer gw.Stop(context.Background())

	dispatcher := dispatch.New(dispatch.Dependencies{
		Instances:   connectors,
		CloudDriver: cloudDriver,
		Mappings:    connectors,
		Sandbox:     sb,
		Gateway:     gw,
		Recorder:    recorder,
	})

	tracerProvider := telemetry.NewProvider(build.AppName, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownTimeout)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	orch := orchestrator.New(execs, events, workflows, dispatcher, logger,
		orchestrator.WithRecorder(recorder),
		orchestrator.WithTracer(tracerProvider.Tracer("flowengine/orchestrator")),
	)
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("serve: starting orchestrator: %w", err)
	}
	defer orch.Stop(context.Background())

	admissionCtl := admission.FromConfig(cfg, admission.NewMapDirectory())
	admissionCtl.SetRecorder(recorder)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		admissionCtl.SetHourlyLimiter(admission.NewRedisLimiter(client))
	}
	defer admissionCtl.Close()

	operatorRole, err := auth.ParseRole(cfg.OperatorRole)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	tokenSecret, err := resolveTokenSecret(ctx, cfg)
	if err != nil {
		return fmt.Errorf("serve: resolving token secret: %w", err)
	}

	api := httpapi.New(httpapi.Config{
		Workflows:       workflows,
		Executions:      execs,
		Events:          events,
		Orchestrator:    orch,
		Admission:       admissionCtl,
		Logger:          logger,
		OperatorKeyHash: cfg.OperatorKeyHash,
		OperatorRole:    operatorRole,
		TokenSecret:     tokenSecret,
	})

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"}}))
	api.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/v1/agents/connect", gw.ServeAgent)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("serve: shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func logOpts(cfg *flowconfig.Config) []flowlog.Option {
	var opts []flowlog.Option
	if cfg.Debug {
		opts = append(opts, flowlog.WithDebug())
	}
	opts = append(opts, flowlog.WithEncoding(cfg.LogEncoding))
	return opts
}

// resolveTokenSecret builds a tokensecret provider chain from whichever of
// TokenSecretFile/TokenSecretStatic are configured and resolves it. If
// neither is set, session-token issuance stays disabled (the zero
// TokenSecret), and httpapi.RequireAPIKey falls back to the operator key
// alone.
func resolveTokenSecret(ctx context.Context, cfg *flowconfig.Config) (auth.TokenSecret, error) {
	var providers []auth.TokenSecretProvider
	if cfg.TokenSecretFile != "" {
		providers = append(providers, tokensecret.NewFile(cfg.TokenSecretFile))
	}
	if cfg.TokenSecretStatic != "" {
		static, err := tokensecret.NewStatic(cfg.TokenSecretStatic)
		if err != nil {
			return auth.TokenSecret{}, err
		}
		providers = append(providers, static)
	}
	if len(providers) == 0 {
		return auth.TokenSecret{}, nil
	}
	return tokensecret.NewChain(providers...).Resolve(ctx)
}

func newExecutionStore(ctx context.Context, cfg *flowconfig.Config) (execstore.Store, error) {
	if cfg.DatabaseURL == "" {
		return execstore.NewMemStore(), nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return execstore.NewPGStore(pool), nil
}
