// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lockbridge/lockbridge/internal/auth"
)

// CredentialRepository implements auth.CredentialRepository in memory.
type CredentialRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID // key: lowercased email
}

// NewCredentialRepository creates an empty in-memory credential repository.
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new user. The uniqueness check and insert happen under one
// lock, so exactly one of any set of concurrent creates for the same email
// succeeds.
func (r *CredentialRepository) Create(_ context.Context, user *auth.User) error {
	key := emailKey(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[key]; exists {
		return oops.Code("AUTH_ACCOUNT_EXISTS").
			With("email", user.Email).
			Errorf("user already exists")
	}

	u := *user
	r.byID[u.ID] = &u
	r.byEmail[key] = u.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *CredentialRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	u := *user
	return &u, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *CredentialRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	u := *r.byID[id]
	return &u, nil
}

// Update updates an existing user.
func (r *CredentialRepository) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}

	if emailKey(current.Email) != emailKey(user.Email) {
		if _, exists := r.byEmail[emailKey(user.Email)]; exists {
			return oops.Code("AUTH_ACCOUNT_EXISTS").
				With("email", user.Email).
				Errorf("user already exists")
		}
		delete(r.byEmail, emailKey(current.Email))
		r.byEmail[emailKey(user.Email)] = user.ID
	}

	u := *user
	r.byID[u.ID] = &u
	return nil
}

// UpdatePassword updates only the password hash for a user.
func (r *CredentialRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	return nil
}

// emailKey normalizes an email for case-insensitive comparison.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Compile-time interface check.
var _ auth.CredentialRepository = (*CredentialRepository)(nil)
