package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/types"
)

var lastOwnerErr = &pgconn.PgError{Code: "P0001", ConstraintName: "memberships_last_owner"}

func TestMembershipRepository_Create_Duplicate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.Anything, mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

	err := repo.Create(ctx, &types.Membership{ID: "mem_1", OrganizationID: "org_1", UserID: "user_1", Role: types.RoleMember, Status: types.MembershipActive})
	assert.Equal(t, types.ErrCodeConflictAlreadyMember, types.CodeOf(err))
}

func TestMembershipRepository_Get(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	db.On("QueryRow", ctx, mock.Anything, []any{"org_1", "user_1"}).
		Return(&mockRow{values: []any{"mem_1", "org_1", "user_1", "owner", "active", nil, now, now}})
	db.On("QueryRow", ctx, mock.Anything, []any{"org_1", "user_2"}).
		Return(&mockRow{err: pgx.ErrNoRows})

	m, err := repo.Get(ctx, "org_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.RoleOwner, m.Role)
	assert.True(t, m.IsActive())
	assert.Nil(t, m.InvitedBy)

	_, err = repo.Get(ctx, "org_1", "user_2")
	assert.Equal(t, types.ErrCodeNotFoundMembership, types.CodeOf(err))
}

func TestMembershipRepository_List(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := newMockRows(
		[]any{"mem_1", "org_1", "user_1", "owner", "active", nil, now, now, "alice@acme.com", "Alice", nil},
		[]any{"mem_2", "org_1", "user_2", "member", "active", "user_1", now, now, "bob@acme.com", "Bob", "https://a/b.png"},
	)
	db.On("Query", ctx, mock.Anything, []any{"org_1"}).Return(rows, nil)

	members, err := repo.List(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice@acme.com", members[0].Email)
	assert.Equal(t, types.RoleMember, members[1].Role)
	require.NotNil(t, members[1].InvitedBy)
	assert.Equal(t, "user_1", *members[1].InvitedBy)
	assert.True(t, rows.closed)
}

func TestMembershipRepository_CountActiveOwners(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.Anything, []any{"org_1"}).Return(&mockRow{values: []any{2}})

	n, err := repo.CountActiveOwners(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMembershipRepository_ActiveMemberExistsByEmail_Canonicalizes(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.Anything, []any{"org_1", "carol@acme.com"}).Return(&mockRow{values: []any{true}})

	ok, err := repo.ActiveMemberExistsByEmail(ctx, "org_1", "  Carol@ACME.com ")
	require.NoError(t, err)
	assert.True(t, ok)
	db.AssertExpectations(t)
}

func TestMembershipRepository_UpdateRole(t *testing.T) {
	ctx := context.Background()

	t.Run("conditional miss is a concurrent change", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", ctx, mock.Anything, []any{types.RoleAdmin, "org_1", "user_2", types.RoleMember}).
			Return(pgconn.NewCommandTag("UPDATE 0"), nil)
		err := NewMembershipRepository(db).UpdateRole(ctx, "org_1", "user_2", types.RoleMember, types.RoleAdmin)
		assert.Equal(t, types.ErrCodeConflictConcurrent, types.CodeOf(err))
	})

	t.Run("owner guard maps to last owner conflict", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", ctx, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, lastOwnerErr)
		err := NewMembershipRepository(db).UpdateRole(ctx, "org_1", "user_1", types.RoleOwner, types.RoleAdmin)
		assert.Equal(t, types.ErrCodeConflictLastOwner, types.CodeOf(err))
	})
}

func TestMembershipRepository_DemotePromote(t *testing.T) {
	ctx := context.Background()

	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, "role = 'admin'") }), []any{"org_1", "user_1"}).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, "role = 'owner', updated_at") }), []any{"org_1", "user_9"}).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	assert.Equal(t, types.ErrCodeConflictNotOwner, types.CodeOf(repo.Demote(ctx, "org_1", "user_1")))
	assert.Equal(t, types.ErrCodeNotFoundMembership, types.CodeOf(repo.Promote(ctx, "org_1", "user_9")))
}

func TestMembershipRepository_Delete(t *testing.T) {
	ctx := context.Background()

	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	db.On("Exec", ctx, mock.Anything, []any{"org_1", "user_2"}).Return(pgconn.NewCommandTag("DELETE 1"), nil)
	db.On("Exec", ctx, mock.Anything, []any{"org_1", "user_3"}).Return(pgconn.NewCommandTag("DELETE 0"), nil)
	db.On("Exec", ctx, mock.Anything, []any{"org_1", "user_1"}).Return(pgconn.CommandTag{}, lastOwnerErr)

	require.NoError(t, repo.Delete(ctx, "org_1", "user_2"))
	assert.Equal(t, types.ErrCodeNotFoundMembership, types.CodeOf(repo.Delete(ctx, "org_1", "user_3")))
	assert.Equal(t, types.ErrCodeConflictLastOwner, types.CodeOf(repo.Delete(ctx, "org_1", "user_1")))
}

func TestMembershipRepository_ListForUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMembershipRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := newMockRows(
		[]any{"org_1", "Acme", "acme", "free", nil, []byte(`{}`), nil, now, now, "owner"},
	)
	db.On("Query", ctx, mock.Anything, []any{"user_1"}).Return(rows, nil)

	orgs, err := repo.ListForUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "acme", orgs[0].Slug)
	assert.Equal(t, types.RoleOwner, orgs[0].Role)
	assert.Empty(t, orgs[0].StripeCustomerID)
}
