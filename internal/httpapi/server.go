// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

// Package httpapi exposes the authentication service over HTTP.
//
// All endpoints live under /api/auth and exchange JSON. The session token
// travels in an HttpOnly cookie; handlers never echo it in response bodies.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/internal/observability"
)

// ServerConfig collects the dependencies and settings for the API server.
type ServerConfig struct {
	Addr         string
	Auth         *auth.Service
	Resets       *auth.PasswordResetService
	Sessions     auth.SessionRepository
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	CookieSecure bool

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// Server serves the authentication HTTP API.
type Server struct {
	addr         string
	auth         *auth.Service
	resets       *auth.PasswordResetService
	sessions     auth.SessionRepository
	logger       *slog.Logger
	metrics      *observability.Metrics
	cookieSecure bool
	tlsCertFile  string
	tlsKeyFile   string

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a new API server. Metrics may be nil (recording becomes a
// no-op); everything else is required.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("listen address is required")
	}
	if cfg.Auth == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("auth service is required")
	}
	if cfg.Resets == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("password reset service is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("session repository is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:         cfg.Addr,
		auth:         cfg.Auth,
		resets:       cfg.Resets,
		sessions:     cfg.Sessions,
		logger:       logger,
		metrics:      cfg.Metrics,
		cookieSecure: cfg.CookieSecure,
		tlsCertFile:  cfg.TLSCertFile,
		tlsKeyFile:   cfg.TLSKeyFile,
	}, nil
}

// Handler builds the full route table wrapped in the middleware chain.
// Exposed for handler-level tests via httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", s.handleResetPassword)
	mux.Handle("GET /api/auth/sessions", s.requireSession(http.HandlerFunc(s.handleListSessions)))

	var handler http.Handler = mux
	handler = s.metricsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

// Start begins serving the API.
// It returns an error channel that will receive any errors from the HTTP
// server after it starts. The channel is closed when the server stops
// gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	serveTLS := s.tlsCertFile != "" && s.tlsKeyFile != ""

	go func() {
		defer close(errCh)
		var serveErr error
		if serveTLS {
			serveErr = httpSrv.ServeTLS(listener, s.tlsCertFile, s.tlsKeyFile)
		} else {
			serveErr = httpSrv.Serve(listener)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String(), "tls", serveTLS)
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// recordAuth bumps the auth operation counter when metrics are wired.
func (s *Server) recordAuth(op, status string) {
	if s.metrics != nil {
		s.metrics.AuthRequestsTotal.WithLabelValues(op, status).Inc()
	}
}

// recordIssued bumps the sessions-issued counter when metrics are wired.
func (s *Server) recordIssued(op string) {
	if s.metrics != nil {
		s.metrics.SessionsIssuedTotal.WithLabelValues(op).Inc()
	}
}

// recordRevoked bumps the sessions-revoked counter when metrics are wired.
func (s *Server) recordRevoked(reason string) {
	if s.metrics != nil {
		s.metrics.SessionsRevokedTotal.WithLabelValues(reason).Inc()
	}
}
