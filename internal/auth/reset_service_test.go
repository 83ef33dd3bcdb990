// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/internal/auth/mocks"
	"github.com/lockbridge/lockbridge/pkg/errutil"
)

func newResetServiceUnderTest(t *testing.T) (*auth.PasswordResetService, *mocks.MockCredentialRepository, *mocks.MockResetRepository, *mocks.MockPasswordHasher) {
	t.Helper()

	users := mocks.NewMockCredentialRepository(t)
	resets := mocks.NewMockResetRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	svc, err := auth.NewPasswordResetService(users, resets, hasher)
	require.NoError(t, err)

	return svc, users, resets, hasher
}

func TestNewPasswordResetService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.CredentialRepository
		resets      auth.ResetRepository
		hasher      auth.PasswordHasher
		expectError string
	}{
		{
			name:        "nil credential repository",
			resets:      mocks.NewMockResetRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "credential repository is required",
		},
		{
			name:        "nil reset repository",
			users:       mocks.NewMockCredentialRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "reset repository is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockCredentialRepository(t),
			resets:      mocks.NewMockResetRepository(t),
			expectError: "password hasher is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewPasswordResetService(tt.users, tt.resets, tt.hasher)
			assert.Nil(t, svc)
			errutil.AssertErrorCode(t, err, "AUTH_NIL_DEPENDENCY")
			assert.ErrorContains(t, err, tt.expectError)
		})
	}
}

func TestPasswordResetService_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("known email returns token and persists reset", func(t *testing.T) {
		svc, users, resets, _ := newResetServiceUnderTest(t)

		user, err := auth.NewUser("alice@example.com", testPasswordHash)
		require.NoError(t, err)

		var stored *auth.PasswordReset
		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		resets.On("Create", ctx, mock.AnythingOfType("*auth.PasswordReset")).Run(func(args mock.Arguments) {
			stored = args.Get(1).(*auth.PasswordReset)
		}).Return(nil)

		token, err := svc.Request(ctx, "alice@example.com")
		require.NoError(t, err)

		assert.Len(t, token, auth.ResetTokenBytes*2)
		require.NotNil(t, stored)
		assert.Equal(t, user.ID, stored.UserID)
		assert.True(t, auth.VerifyResetToken(token, stored.TokenHash))
		assert.WithinDuration(t, time.Now().Add(auth.ResetTokenExpiry), stored.ExpiresAt, time.Second)
	})

	t.Run("unknown email returns empty token without error", func(t *testing.T) {
		svc, users, _, _ := newResetServiceUnderTest(t)

		users.On("GetByEmail", ctx, "nobody@example.com").Return(nil, auth.ErrNotFound)

		token, err := svc.Request(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("repository error propagates", func(t *testing.T) {
		svc, users, _, _ := newResetServiceUnderTest(t)

		users.On("GetByEmail", ctx, "alice@example.com").Return(nil, errors.New("db down"))

		_, err := svc.Request(ctx, "alice@example.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
	})

	t.Run("persistence error propagates", func(t *testing.T) {
		svc, users, resets, _ := newResetServiceUnderTest(t)

		user, err := auth.NewUser("alice@example.com", testPasswordHash)
		require.NoError(t, err)

		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		resets.On("Create", ctx, mock.AnythingOfType("*auth.PasswordReset")).Return(errors.New("insert failed"))

		_, err = svc.Request(ctx, "alice@example.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
	})
}

func TestPasswordResetService_ValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token returns user ID", func(t *testing.T) {
		svc, _, resets, _ := newResetServiceUnderTest(t)

		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		userID := ulid.Make()
		reset, err := auth.NewPasswordReset(userID, hash, time.Now().Add(time.Hour))
		require.NoError(t, err)

		resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)

		got, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		svc, _, _, _ := newResetServiceUnderTest(t)

		_, err := svc.ValidateToken(ctx, "")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_EMPTY")
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		svc, _, resets, _ := newResetServiceUnderTest(t)

		resets.On("GetByTokenHash", ctx, mock.AnythingOfType("string")).Return(nil, auth.ErrNotFound)

		_, err := svc.ValidateToken(ctx, "deadbeef")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("expired token rejected", func(t *testing.T) {
		svc, _, resets, _ := newResetServiceUnderTest(t)

		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		reset, err := auth.NewPasswordReset(ulid.Make(), hash, time.Now().Add(-time.Minute))
		require.NoError(t, err)

		resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)

		_, err = svc.ValidateToken(ctx, token)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_EXPIRED")
	})

	t.Run("repository error propagates", func(t *testing.T) {
		svc, _, resets, _ := newResetServiceUnderTest(t)

		resets.On("GetByTokenHash", ctx, mock.AnythingOfType("string")).Return(nil, errors.New("db down"))

		_, err := svc.ValidateToken(ctx, "deadbeef")
		errutil.AssertErrorCode(t, err, "RESET_VALIDATE_FAILED")
	})
}

func TestPasswordResetService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates password and clears reset tokens", func(t *testing.T) {
		svc, users, resets, hasher := newResetServiceUnderTest(t)

		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		userID := ulid.Make()
		reset, err := auth.NewPasswordReset(userID, hash, time.Now().Add(time.Hour))
		require.NoError(t, err)

		resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)
		hasher.On("Hash", "newpassword123").Return("$argon2id$new", nil)
		users.On("UpdatePassword", ctx, userID, "$argon2id$new").Return(nil)
		resets.On("DeleteByUser", ctx, userID).Return(nil)

		require.NoError(t, svc.ResetPassword(ctx, token, "newpassword123"))
	})

	t.Run("weak password rejected before token lookup", func(t *testing.T) {
		svc, _, _, _ := newResetServiceUnderTest(t)

		err := svc.ResetPassword(ctx, "sometoken", "short")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		svc, _, resets, _ := newResetServiceUnderTest(t)

		resets.On("GetByTokenHash", ctx, mock.AnythingOfType("string")).Return(nil, auth.ErrNotFound)

		err := svc.ResetPassword(ctx, "deadbeef", "newpassword123")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("hash failure propagates", func(t *testing.T) {
		svc, _, resets, hasher := newResetServiceUnderTest(t)

		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		reset, err := auth.NewPasswordReset(ulid.Make(), hash, time.Now().Add(time.Hour))
		require.NoError(t, err)

		resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)
		hasher.On("Hash", "newpassword123").Return("", errors.New("hash failure"))

		err = svc.ResetPassword(ctx, token, "newpassword123")
		errutil.AssertErrorCode(t, err, "RESET_PASSWORD_FAILED")
	})

	t.Run("update failure propagates", func(t *testing.T) {
		svc, users, resets, hasher := newResetServiceUnderTest(t)

		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		userID := ulid.Make()
		reset, err := auth.NewPasswordReset(userID, hash, time.Now().Add(time.Hour))
		require.NoError(t, err)

		resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)
		hasher.On("Hash", "newpassword123").Return("$argon2id$new", nil)
		users.On("UpdatePassword", ctx, userID, "$argon2id$new").Return(errors.New("update failed"))

		err = svc.ResetPassword(ctx, token, "newpassword123")
		errutil.AssertErrorCode(t, err, "RESET_PASSWORD_FAILED")
	})

	t.Run("cleanup failure does not fail the reset", func(t *testing.T) {
		svc, users, resets, hasher := newResetServiceUnderTest(t)

		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		userID := ulid.Make()
		reset, err := auth.NewPasswordReset(userID, hash, time.Now().Add(time.Hour))
		require.NoError(t, err)

		resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)
		hasher.On("Hash", "newpassword123").Return("$argon2id$new", nil)
		users.On("UpdatePassword", ctx, userID, "$argon2id$new").Return(nil)
		resets.On("DeleteByUser", ctx, userID).Return(errors.New("delete failed"))

		require.NoError(t, svc.ResetPassword(ctx, token, "newpassword123"))
	})
}
