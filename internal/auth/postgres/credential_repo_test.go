// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/pkg/errutil"
)

const testPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$salt$hash"

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
}

func newTestUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("alice@example.com", testPasswordHash)
	require.NoError(t, err)
	return user
}

func userColumns() []string {
	return []string{"id", "email", "password_hash", "failed_attempts", "locked_until", "created_at", "updated_at"}
}

func TestCredentialRepository_Create(t *testing.T) {
	user := newTestUser(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantCode  string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt).
					WillReturnError(uniqueViolation())
			},
			wantCode: "AUTH_ACCOUNT_EXISTS",
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewCredentialRepository(mock)
			err = repo.Create(context.Background(), user)

			if tt.wantCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestCredentialRepository_GetByEmail(t *testing.T) {
	user := newTestUser(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns()).
					AddRow(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt)
				mock.ExpectQuery(`SELECT id, email, password_hash`).
					WithArgs("alice@example.com").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, email, password_hash`).
					WithArgs("alice@example.com").
					WillReturnRows(pgxmock.NewRows(userColumns()))
			},
			wantErr: auth.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, email, password_hash`).
					WithArgs("alice@example.com").
					WillReturnError(errors.New("timeout"))
			},
			wantCode: "USER_GET_BY_EMAIL_FAILED",
		},
		{
			name: "malformed id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns()).
					AddRow("not-a-ulid", user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt)
				mock.ExpectQuery(`SELECT id, email, password_hash`).
					WithArgs("alice@example.com").
					WillReturnRows(rows)
			},
			wantCode: "USER_GET_BY_EMAIL_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewCredentialRepository(mock)
			got, err := repo.GetByEmail(context.Background(), "alice@example.com")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != "":
				errutil.AssertErrorCode(t, err, tt.wantCode)
			default:
				require.NoError(t, err)
				assert.Equal(t, user.ID, got.ID)
				assert.Equal(t, user.Email, got.Email)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestCredentialRepository_GetByID(t *testing.T) {
	user := newTestUser(t)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := pgxmock.NewRows(userColumns()).
			AddRow(user.ID.String(), user.Email, user.PasswordHash,
				user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt)
		mock.ExpectQuery(`SELECT id, email, password_hash`).
			WithArgs(user.ID.String()).
			WillReturnRows(rows)

		repo := NewCredentialRepository(mock)
		got, err := repo.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectQuery(`SELECT id, email, password_hash`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userColumns()))

		repo := NewCredentialRepository(mock)
		_, err = repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestCredentialRepository_Update(t *testing.T) {
	user := newTestUser(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET`).
					WithArgs(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "no rows affected",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET`).
					WithArgs(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: auth.ErrNotFound,
		},
		{
			name: "email collision",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET`).
					WithArgs(user.ID.String(), user.Email, user.PasswordHash,
						user.FailedAttempts, user.LockedUntil, user.UpdatedAt).
					WillReturnError(uniqueViolation())
			},
			wantCode: "AUTH_ACCOUNT_EXISTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewCredentialRepository(mock)
			err = repo.Update(context.Background(), user)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != "":
				errutil.AssertErrorCode(t, err, tt.wantCode)
			default:
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestCredentialRepository_UpdatePassword(t *testing.T) {
	id := ulid.Make()

	t.Run("successful update", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "$argon2id$rotated", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewCredentialRepository(mock)
		require.NoError(t, repo.UpdatePassword(context.Background(), id, "$argon2id$rotated"))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("no rows affected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "$argon2id$rotated", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewCredentialRepository(mock)
		err = repo.UpdatePassword(context.Background(), id, "$argon2id$rotated")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestCredentialRepository_LockoutRoundTrip(t *testing.T) {
	// locked_until survives storage as a *time.Time.
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	user := newTestUser(t)
	lockedUntil := time.Now().Add(auth.LockoutDuration)
	user.LockedUntil = &lockedUntil

	rows := pgxmock.NewRows(userColumns()).
		AddRow(user.ID.String(), user.Email, user.PasswordHash,
			user.FailedAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt)
	mock.ExpectQuery(`SELECT id, email, password_hash`).
		WithArgs(user.Email).
		WillReturnRows(rows)

	repo := NewCredentialRepository(mock)
	got, err := repo.GetByEmail(context.Background(), user.Email)
	require.NoError(t, err)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.IsLocked())

	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}
