// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/pkg/errutil"
)

func newTestReset(t *testing.T) *auth.PasswordReset {
	t.Helper()
	_, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)
	reset, err := auth.NewPasswordReset(ulid.Make(), hash, time.Now().Add(auth.ResetTokenExpiry))
	require.NoError(t, err)
	return reset
}

func resetColumns() []string {
	return []string{"id", "user_id", "token_hash", "expires_at", "created_at"}
}

func TestResetRepository_Create(t *testing.T) {
	reset := newTestReset(t)

	t.Run("successful insert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(reset.ID.String(), reset.UserID.String(), reset.TokenHash,
				reset.ExpiresAt, reset.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewResetRepository(mock)
		require.NoError(t, repo.Create(context.Background(), reset))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(reset.ID.String(), reset.UserID.String(), reset.TokenHash,
				reset.ExpiresAt, reset.CreatedAt).
			WillReturnError(errors.New("connection refused"))

		repo := NewResetRepository(mock)
		errutil.AssertErrorCode(t, repo.Create(context.Background(), reset), "RESET_CREATE_FAILED")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestResetRepository_GetByTokenHash(t *testing.T) {
	reset := newTestReset(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(resetColumns()).
					AddRow(reset.ID.String(), reset.UserID.String(), reset.TokenHash,
						reset.ExpiresAt, reset.CreatedAt)
				mock.ExpectQuery(`SELECT id, user_id, token_hash`).
					WithArgs(reset.TokenHash).
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, user_id, token_hash`).
					WithArgs(reset.TokenHash).
					WillReturnRows(pgxmock.NewRows(resetColumns()))
			},
			wantErr: auth.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, user_id, token_hash`).
					WithArgs(reset.TokenHash).
					WillReturnError(errors.New("timeout"))
			},
			wantCode: "RESET_GET_BY_TOKEN_FAILED",
		},
		{
			name: "malformed user id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(resetColumns()).
					AddRow(reset.ID.String(), "not-a-ulid", reset.TokenHash,
						reset.ExpiresAt, reset.CreatedAt)
				mock.ExpectQuery(`SELECT id, user_id, token_hash`).
					WithArgs(reset.TokenHash).
					WillReturnRows(rows)
			},
			wantCode: "RESET_INVALID_USER_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewResetRepository(mock)
			got, err := repo.GetByTokenHash(context.Background(), reset.TokenHash)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != "":
				errutil.AssertErrorCode(t, err, tt.wantCode)
			default:
				require.NoError(t, err)
				assert.Equal(t, reset.ID, got.ID)
				assert.Equal(t, reset.UserID, got.UserID)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestResetRepository_DeleteByUser(t *testing.T) {
	userID := ulid.Make()

	t.Run("delete with no resets is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM password_resets WHERE user_id`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewResetRepository(mock)
		require.NoError(t, repo.DeleteByUser(context.Background(), userID))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM password_resets WHERE user_id`).
			WithArgs(userID.String()).
			WillReturnError(errors.New("disk full"))

		repo := NewResetRepository(mock)
		errutil.AssertErrorCode(t, repo.DeleteByUser(context.Background(), userID), "RESET_DELETE_BY_USER_FAILED")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestResetRepository_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM password_resets WHERE expires_at`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := NewResetRepository(mock)
	deleted, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}
