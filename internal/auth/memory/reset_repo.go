// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lockbridge/lockbridge/internal/auth"
)

// ResetRepository implements auth.ResetRepository in memory.
type ResetRepository struct {
	mu     sync.RWMutex
	byHash map[string]*auth.PasswordReset
}

// NewResetRepository creates an empty in-memory reset repository.
func NewResetRepository() *ResetRepository {
	return &ResetRepository{
		byHash: make(map[string]*auth.PasswordReset),
	}
}

// Create stores a new password reset request.
func (r *ResetRepository) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs := *reset
	r.byHash[rs.TokenHash] = &rs
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *ResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordReset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reset, ok := r.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	rs := *reset
	return &rs, nil
}

// DeleteByUser removes all reset requests for a user.
func (r *ResetRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, reset := range r.byHash {
		if reset.UserID == userID {
			delete(r.byHash, hash)
		}
	}
	return nil
}

// DeleteExpired removes all expired reset requests and returns the count.
func (r *ResetRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var deleted int64
	for hash, reset := range r.byHash {
		if now.After(reset.ExpiresAt) {
			delete(r.byHash, hash)
			deleted++
		}
	}
	return deleted, nil
}

// Compile-time interface check.
var _ auth.ResetRepository = (*ResetRepository)(nil)
