// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/internal/auth/memory"
	authpg "github.com/lockbridge/lockbridge/internal/auth/postgres"
	"github.com/lockbridge/lockbridge/internal/config"
	"github.com/lockbridge/lockbridge/internal/httpapi"
	"github.com/lockbridge/lockbridge/internal/logging"
	"github.com/lockbridge/lockbridge/internal/observability"
	"github.com/lockbridge/lockbridge/internal/store"
)

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP server exposing signup, login, logout, session
resolution, and password reset under /api/auth.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// repositories bundles the storage backends behind the service layer.
type repositories struct {
	users    auth.CredentialRepository
	sessions auth.SessionRepository
	resets   auth.ResetRepository
}

// runServe starts the API and observability servers and blocks until a
// shutdown signal arrives.
func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.SetDefault(logging.Options{
		Service: "lockbridge",
		Version: version,
		Format:  cfg.LogFormat,
	})

	slog.Info("starting lockbridge",
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"in_memory", cfg.InMemory,
		"session_ttl", cfg.SessionTTL.String(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var repos repositories
	if cfg.InMemory {
		slog.Warn("using in-memory storage; all accounts are lost on restart")
		repos = repositories{
			users:    memory.NewCredentialRepository(),
			sessions: memory.NewSessionRepository(),
			resets:   memory.NewResetRepository(),
		}
	} else {
		pool, connErr := store.Connect(ctx, cfg.DatabaseURL)
		if connErr != nil {
			return fmt.Errorf("failed to connect to database: %w", connErr)
		}
		defer pool.Close()

		repos = repositories{
			users:    authpg.NewCredentialRepository(pool),
			sessions: authpg.NewSessionRepository(pool),
			resets:   authpg.NewResetRepository(pool),
		}
		slog.Info("connected to database")
	}

	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewServiceWithLogger(repos.users, repos.sessions, hasher, cfg.SessionTTL, logger)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	resetSvc, err := auth.NewPasswordResetService(repos.users, repos.resets, hasher)
	if err != nil {
		return fmt.Errorf("failed to create password reset service: %w", err)
	}

	// Start observability server if configured
	var ready atomic.Bool
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, ready.Load)
		metrics = obsServer.Metrics()
		if _, err := obsServer.Start(); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
	}

	apiServer, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:         cfg.ListenAddr,
		Auth:         authSvc,
		Resets:       resetSvc,
		Sessions:     repos.sessions,
		Logger:       logger,
		Metrics:      metrics,
		CookieSecure: cfg.CookieSecure,
		TLSCertFile:  cfg.TLSCertFile,
		TLSKeyFile:   cfg.TLSKeyFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return fmt.Errorf("failed to start api server: %w", err)
	}
	ready.Store(true)

	// Start the expired-session reaper when configured
	reaperDone := make(chan struct{})
	if cfg.ReapInterval > 0 {
		reaper, reapErr := httpapi.NewReaper(repos.sessions, cfg.ReapInterval, logger, metrics)
		if reapErr != nil {
			ready.Store(false)
			stopObservability(obsServer)
			return fmt.Errorf("failed to create session reaper: %w", reapErr)
		}
		go func() {
			defer close(reaperDone)
			reaper.Run(ctx)
		}()
	} else {
		close(reaperDone)
	}

	cmd.Println("Lockbridge server started")
	slog.Info("lockbridge ready", "addr", apiServer.Addr())

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-apiErrCh:
		if err != nil {
			slog.Error("api server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")
	ready.Store(false)
	cancel()
	<-reaperDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

func stopObservability(obsServer *observability.Server) {
	if obsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}
