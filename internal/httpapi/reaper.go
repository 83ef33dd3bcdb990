// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/internal/observability"
)

// Reaper periodically deletes expired sessions. Resolution already ignores
// expired sessions, so the reaper only reclaims storage; running without one
// is safe.
type Reaper struct {
	sessions auth.SessionRepository
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewReaper creates a reaper sweeping at the given interval.
func NewReaper(sessions auth.SessionRepository, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) (*Reaper, error) {
	if sessions == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("session repository is required")
	}
	if interval <= 0 {
		return nil, oops.Code("CONFIG_INVALID").
			With("interval", interval.String()).
			Errorf("reap interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Run sweeps until ctx is cancelled. Sweep failures are logged and the loop
// keeps going; a transient storage fault shouldn't kill the reaper.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("session reaper started", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil {
				r.logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}

// ReapOnce deletes all currently expired sessions and reports the count.
func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	count, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_REAP_FAILED").Wrap(err)
	}

	if count > 0 {
		r.logger.Info("reaped expired sessions", "count", count)
		if r.metrics != nil {
			r.metrics.SessionsRevokedTotal.WithLabelValues("expired").Add(float64(count))
		}
	}
	return count, nil
}
