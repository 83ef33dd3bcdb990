// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates user with valid email", func(t *testing.T) {
		user, err := auth.NewUser("alice@example.com", "somehash")
		require.NoError(t, err)

		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "somehash", user.PasswordHash)
		assert.Zero(t, user.FailedAttempts)
		assert.Nil(t, user.LockedUntil)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		user, err := auth.NewUser("  alice@example.com  ", "somehash")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		_, err := auth.NewUser("not-an-email", "somehash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
	})

	t.Run("rejects empty password hash", func(t *testing.T) {
		_, err := auth.NewUser("alice@example.com", "")
		require.Error(t, err)
	})
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"a.b+tag@sub.example.co.uk",
		"user_name@host.io",
	}
	for _, email := range valid {
		t.Run(email, func(t *testing.T) {
			assert.NoError(t, auth.ValidateEmail(email))
		})
	}

	invalid := []string{
		"",
		"   ",
		"plainaddress",
		"@no-local-part.com",
		"missing-domain@",
		"spaces in@example.com",
		"no-tld@host",
	}
	for _, email := range invalid {
		t.Run("invalid: "+email, func(t *testing.T) {
			err := auth.ValidateEmail(email)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Run("accepts password at minimum length", func(t *testing.T) {
		assert.NoError(t, auth.ValidatePassword(strings.Repeat("a", auth.MinPasswordLength)))
	})

	t.Run("accepts password at maximum length", func(t *testing.T) {
		assert.NoError(t, auth.ValidatePassword(strings.Repeat("a", auth.MaxPasswordLength)))
	})

	t.Run("rejects empty password", func(t *testing.T) {
		err := auth.ValidatePassword("")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
	})

	t.Run("rejects short password", func(t *testing.T) {
		err := auth.ValidatePassword(strings.Repeat("a", auth.MinPasswordLength-1))
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
	})

	t.Run("rejects overlong password", func(t *testing.T) {
		err := auth.ValidatePassword(strings.Repeat("a", auth.MaxPasswordLength+1))
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
	})
}

func TestUser_FailureTracking(t *testing.T) {
	t.Run("RecordFailure increments and locks at threshold", func(t *testing.T) {
		user, err := auth.NewUser("alice@example.com", "somehash")
		require.NoError(t, err)

		for i := 1; i < auth.LockoutThreshold; i++ {
			user.RecordFailure()
			assert.Equal(t, i, user.FailedAttempts)
			assert.Nil(t, user.LockedUntil, "no lockout below threshold")
		}

		user.RecordFailure()
		assert.Equal(t, auth.LockoutThreshold, user.FailedAttempts)
		require.NotNil(t, user.LockedUntil)
		assert.True(t, user.IsLocked())
	})

	t.Run("RecordSuccess clears failures and lockout", func(t *testing.T) {
		user, err := auth.NewUser("alice@example.com", "somehash")
		require.NoError(t, err)

		for i := 0; i < auth.LockoutThreshold; i++ {
			user.RecordFailure()
		}
		require.True(t, user.IsLocked())

		user.RecordSuccess()
		assert.Zero(t, user.FailedAttempts)
		assert.Nil(t, user.LockedUntil)
		assert.False(t, user.IsLocked())
	})

	t.Run("expired lockout no longer locks", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		user := &auth.User{LockedUntil: &past}
		assert.False(t, user.IsLocked())
	})
}
