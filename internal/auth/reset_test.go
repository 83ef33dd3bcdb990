// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/pkg/errutil"
)

func TestGenerateResetToken(t *testing.T) {
	t.Run("generates hex token with matching hash", func(t *testing.T) {
		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)

		assert.Len(t, token, auth.ResetTokenBytes*2)
		assert.Len(t, hash, 64) // sha256 hex
		assert.True(t, auth.VerifyResetToken(token, hash))
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, _, err := auth.GenerateResetToken()
		require.NoError(t, err)
		token2, _, err := auth.GenerateResetToken()
		require.NoError(t, err)

		assert.NotEqual(t, token1, token2)
	})
}

func TestVerifyResetToken(t *testing.T) {
	token, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)

	assert.True(t, auth.VerifyResetToken(token, hash))
	assert.False(t, auth.VerifyResetToken("wrong", hash))
	assert.False(t, auth.VerifyResetToken("", hash))
	assert.False(t, auth.VerifyResetToken(token, ""))
}

func TestNewPasswordReset(t *testing.T) {
	userID := ulid.Make()
	expiresAt := time.Now().Add(auth.ResetTokenExpiry)

	t.Run("valid reset", func(t *testing.T) {
		reset, err := auth.NewPasswordReset(userID, "tokenhash", expiresAt)
		require.NoError(t, err)

		assert.NotEqual(t, ulid.ULID{}, reset.ID)
		assert.Equal(t, userID, reset.UserID)
		assert.Equal(t, "tokenhash", reset.TokenHash)
		assert.Equal(t, expiresAt, reset.ExpiresAt)
		assert.WithinDuration(t, time.Now(), reset.CreatedAt, time.Second)
	})

	t.Run("zero user ID", func(t *testing.T) {
		_, err := auth.NewPasswordReset(ulid.ULID{}, "tokenhash", expiresAt)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_USER")
	})

	t.Run("empty token hash", func(t *testing.T) {
		_, err := auth.NewPasswordReset(userID, "", expiresAt)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_HASH")
	})

	t.Run("zero expiry", func(t *testing.T) {
		_, err := auth.NewPasswordReset(userID, "tokenhash", time.Time{})
		errutil.AssertErrorCode(t, err, "RESET_INVALID_EXPIRY")
	})
}

func TestPasswordReset_IsExpired(t *testing.T) {
	userID := ulid.Make()

	active, err := auth.NewPasswordReset(userID, "hash", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, active.IsExpired())

	expired, err := auth.NewPasswordReset(userID, "hash", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, expired.IsExpired())
}
