// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service provides authentication and session lifecycle operations.
type Service struct {
	users    CredentialRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
	ttl      time.Duration
}

// NewService creates a new Service. A non-positive sessionTTL falls back to
// DefaultSessionTTL.
func NewService(users CredentialRepository, sessions SessionRepository, hasher PasswordHasher, sessionTTL time.Duration) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("credential repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.Default(),
		ttl:      sessionTTL,
	}, nil
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users CredentialRepository, sessions SessionRepository, hasher PasswordHasher, sessionTTL time.Duration, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("logger is required")
	}
	svc, err := NewService(users, sessions, hasher, sessionTTL)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Signup registers a new user and immediately logs them in.
// Returns the session, the plaintext token for cookie delivery, and the user.
// A duplicate email fails with AUTH_ACCOUNT_EXISTS; the repository insert is
// the atomic uniqueness arbiter under concurrent signups.
func (s *Service) Signup(ctx context.Context, email, password, userAgent, ipAddress string) (*Session, string, *User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, "", nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, "", nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, passwordHash)
	if err != nil {
		return nil, "", nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// AUTH_ACCOUNT_EXISTS passes through untouched so callers can map it.
		return nil, "", nil, err
	}

	session, token, err := s.mintSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, "", nil, err
	}
	return session, token, user, nil
}

// Login authenticates a user and creates a session.
// Returns the session, the plaintext token, and the user.
// Unknown email and wrong password are indistinguishable: both verify a hash
// (a dummy one for unknown emails) and both yield AUTH_INVALID_CREDENTIALS.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*Session, string, *User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			return nil, "", nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify the password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !userExists {
			return nil, "", nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
		}
		return nil, "", nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If the user doesn't exist OR the password is invalid, return the same error
	if !userExists || !valid {
		if userExists {
			// Record failure only for existing users
			user.RecordFailure()
			_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort
		}
		return nil, "", nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	// Check lockout AFTER password verification to maintain constant time
	if user.IsLocked() {
		return nil, "", nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	// Success - reset failure counter
	user.RecordSuccess()

	// Check if password needs upgrade (e.g., from bcrypt to argon2id)
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		newHash, hashErr := s.hasher.Hash(password)
		if hashErr == nil {
			user.PasswordHash = newHash
		}
	}

	// Update user with reset failure count (and possibly upgraded hash)
	// Ignore errors - login should succeed even if update fails
	_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort, login succeeds regardless

	session, token, err := s.mintSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, "", nil, err
	}
	return session, token, user, nil
}

// mintSession generates a token and persists a session for the user.
func (s *Service) mintSession(ctx context.Context, user *User, userAgent, ipAddress string) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user.ID, tokenHash, userAgent, ipAddress, time.Now().Add(s.ttl))
	if err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Logout revokes the session identified by the token. Revoking an absent or
// already-expired token is not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// Resolve looks up the user owning the session token.
// An empty, unknown, or expired token resolves to (nil, nil): unauthenticated
// is a normal state, not an error. Expired sessions are purged lazily here.
// Only storage faults surface as errors.
func (s *Service) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Lazy purge; every reader already treats the session as absent.
		if delErr := s.sessions.DeleteByTokenHash(ctx, tokenHash); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			s.logger.Warn("failed to purge expired session", "session_id", session.ID.String(), "error", delErr)
		}
		return nil, nil
	}

	// Update last seen timestamp (non-blocking, ignore errors)
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort, resolution succeeds regardless

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session owner").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}

	return user, nil
}
