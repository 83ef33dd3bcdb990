// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/internal/auth/memory"
)

func newTestReset(t *testing.T, userID ulid.ULID, expiresAt time.Time) *auth.PasswordReset {
	t.Helper()
	_, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)
	reset, err := auth.NewPasswordReset(userID, hash, expiresAt)
	require.NoError(t, err)
	return reset
}

func TestResetRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewResetRepository()
	reset := newTestReset(t, ulid.Make(), time.Now().Add(time.Hour))

	require.NoError(t, repo.Create(ctx, reset))

	got, err := repo.GetByTokenHash(ctx, reset.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, reset.ID, got.ID)
	assert.Equal(t, reset.UserID, got.UserID)
}

func TestResetRepository_GetByTokenHash_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewResetRepository()

	_, err := repo.GetByTokenHash(ctx, "nope")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestResetRepository_DeleteByUser(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewResetRepository()
	userID := ulid.Make()

	mine := newTestReset(t, userID, time.Now().Add(time.Hour))
	other := newTestReset(t, ulid.Make(), time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, other))

	require.NoError(t, repo.DeleteByUser(ctx, userID))

	_, err := repo.GetByTokenHash(ctx, mine.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.GetByTokenHash(ctx, other.TokenHash)
	assert.NoError(t, err)
}

func TestResetRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewResetRepository()

	expired := newTestReset(t, ulid.Make(), time.Now().Add(-time.Minute))
	active := newTestReset(t, ulid.Make(), time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, active))

	deleted, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByTokenHash(ctx, expired.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.GetByTokenHash(ctx, active.TokenHash)
	assert.NoError(t, err)
}
