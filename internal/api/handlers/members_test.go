package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/types"
)

type mockMemberService struct {
	listFn   func(ctx context.Context, actor types.Caller) ([]*types.MemberView, error)
	changeFn func(ctx context.Context, actor types.Caller, userID string, role types.Role) (*types.Membership, error)
	removeFn func(ctx context.Context, actor types.Caller, userID string) error
}

func (m *mockMemberService) ListMembers(ctx context.Context, actor types.Caller) ([]*types.MemberView, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor)
	}
	return []*types.MemberView{}, nil
}

func (m *mockMemberService) ChangeRole(ctx context.Context, actor types.Caller, userID string, role types.Role) (*types.Membership, error) {
	if m.changeFn != nil {
		return m.changeFn(ctx, actor, userID, role)
	}
	return &types.Membership{UserID: userID, Role: role}, nil
}

func (m *mockMemberService) RemoveMember(ctx context.Context, actor types.Caller, userID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, actor, userID)
	}
	return nil
}

func TestListMembers(t *testing.T) {
	svc := &mockMemberService{
		listFn: func(context.Context, types.Caller) ([]*types.MemberView, error) {
			return []*types.MemberView{{
				Membership: types.Membership{UserID: "user_alice", Role: types.RoleOwner, Status: types.MembershipActive},
				Email:      "alice@acme.test",
				Name:       "Alice",
			}}, nil
		},
	}
	caller := ownerCaller()
	w := do(t, tenantRouter(&caller, NewMemberHandler(svc, nil).RegisterTenantRoutes), http.MethodGet, "/members", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Members []*types.MemberView `json:"members"`
	}](t, w)
	require.Len(t, body.Members, 1)
	assert.Equal(t, "alice@acme.test", body.Members[0].Email)
	assert.Equal(t, types.RoleOwner, body.Members[0].Role)
}

func TestChangeRole(t *testing.T) {
	var gotUser string
	var gotRole types.Role
	svc := &mockMemberService{
		changeFn: func(_ context.Context, _ types.Caller, userID string, role types.Role) (*types.Membership, error) {
			gotUser, gotRole = userID, role
			return &types.Membership{UserID: userID, Role: role}, nil
		},
	}
	caller := ownerCaller()
	router := tenantRouter(&caller, NewMemberHandler(svc, nil).RegisterTenantRoutes)

	w := do(t, router, http.MethodPatch, "/members/user_bob", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "user_bob", gotUser)
	assert.Equal(t, types.RoleAdmin, gotRole)

	w = do(t, router, http.MethodPatch, "/members/user_bob", `{"role":"superuser"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidRole), errorCode(t, w))
}

func TestChangeRole_LastOwner(t *testing.T) {
	svc := &mockMemberService{
		changeFn: func(context.Context, types.Caller, string, types.Role) (*types.Membership, error) {
			return nil, types.NewAppError(types.ErrCodeConflictLastOwner, "an organization must keep at least one owner", nil)
		},
	}
	caller := ownerCaller()
	w := do(t, tenantRouter(&caller, NewMemberHandler(svc, nil).RegisterTenantRoutes), http.MethodPatch, "/members/user_alice", `{"role":"member"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(types.ErrCodeConflictLastOwner), errorCode(t, w))
}

func TestRemoveMember(t *testing.T) {
	var removed string
	svc := &mockMemberService{
		removeFn: func(_ context.Context, _ types.Caller, userID string) error {
			if userID == "user_alice" {
				return types.NewAppError(types.ErrCodePermissionSelfRemoval, "owners cannot remove themselves", nil)
			}
			removed = userID
			return nil
		},
	}
	caller := ownerCaller()
	router := tenantRouter(&caller, NewMemberHandler(svc, nil).RegisterTenantRoutes)

	w := do(t, router, http.MethodDelete, "/members/user_bob", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user_bob", removed)

	w = do(t, router, http.MethodDelete, "/members/user_alice", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
