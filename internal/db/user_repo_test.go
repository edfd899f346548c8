package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/types"
)

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("canonical email", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", ctx, mock.Anything, mock.MatchedBy(func(args []any) bool {
			return args[1] == "alice@acme.com"
		})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

		err := NewUserRepository(db).Create(ctx, &types.User{ID: "user_1", Email: "Alice@Acme.com "})
		require.NoError(t, err)
		db.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", ctx, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

		err := NewUserRepository(db).Create(ctx, &types.User{ID: "user_1", Email: "alice@acme.com"})
		assert.Equal(t, types.ErrCodeConflictEmail, types.CodeOf(err))
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hash := "$2a$12$abc"

	db.On("QueryRow", ctx, mock.Anything, []any{"alice@acme.com"}).Return(&mockRow{values: []any{
		"user_1", "alice@acme.com", "Alice", nil, hash,
		false, nil, []string{}, []byte(`{"language":"pt-BR","theme":"dark"}`),
		2, nil, now, now,
	}})
	db.On("QueryRow", ctx, mock.Anything, []any{"ghost@acme.com"}).Return(&mockRow{err: pgx.ErrNoRows})

	u, err := repo.GetByEmail(ctx, "ALICE@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)
	require.NotNil(t, u.PasswordHash)
	assert.Equal(t, hash, *u.PasswordHash)
	assert.Equal(t, "pt-BR", u.Preferences.Language)
	assert.Equal(t, 2, u.FailedLoginAttempts)
	assert.False(t, u.IsLocked(now))

	_, err = repo.GetByEmail(ctx, "ghost@acme.com")
	assert.Equal(t, types.ErrCodeNotFoundUser, types.CodeOf(err))
}

func TestUserRepository_RecordLoginFailure(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)
	ctx := context.Background()
	lockUntil := time.Date(2026, 3, 1, 0, 15, 0, 0, time.UTC)

	db.On("QueryRow", ctx, mock.Anything, []any{"user_1", 5, lockUntil}).
		Return(&mockRow{values: []any{lockUntil}}).Once()
	db.On("QueryRow", ctx, mock.Anything, []any{"user_2", 5, lockUntil}).
		Return(&mockRow{values: []any{nil}}).Once()

	locked, err := repo.RecordLoginFailure(ctx, "user_1", 5, lockUntil)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.Equal(t, lockUntil, *locked)

	locked, err = repo.RecordLoginFailure(ctx, "user_2", 5, lockUntil)
	require.NoError(t, err)
	assert.Nil(t, locked)
}
