package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/ownership"
	"tenantkit/internal/types"
)

type mockOwnershipService struct {
	transferFn func(ctx context.Context, actor types.Caller, target string) (*ownership.TransferResult, error)
}

func (m *mockOwnershipService) Transfer(ctx context.Context, actor types.Caller, target string) (*ownership.TransferResult, error) {
	return m.transferFn(ctx, actor, target)
}

func TestTransferOwnership(t *testing.T) {
	svc := &mockOwnershipService{
		transferFn: func(_ context.Context, actor types.Caller, target string) (*ownership.TransferResult, error) {
			switch {
			case actor.Role != types.RoleOwner:
				return nil, types.NewAppError(types.ErrCodePermissionRole, "owner only", nil)
			case target == actor.UserID:
				return nil, types.NewAppError(types.ErrCodeValidationSelfTarget, "cannot transfer to yourself", nil)
			case target == "user_ghost":
				return nil, types.NewAppError(types.ErrCodeNotFoundMembership, "membership not found", nil)
			}
			return &ownership.TransferResult{
				OrganizationID:  actor.OrganizationID,
				PreviousOwnerID: actor.UserID,
				NewOwnerID:      target,
				EmailSent:       true,
			}, nil
		},
	}
	h := NewOwnershipHandler(svc, nil)
	owner := ownerCaller()
	admin := ownerCaller()
	admin.Role = types.RoleAdmin

	tests := []struct {
		name     string
		caller   types.Caller
		body     string
		wantCode int
	}{
		{"success", owner, `{"user_id":"user_bob"}`, http.StatusOK},
		{"admin forbidden", admin, `{"user_id":"user_bob"}`, http.StatusForbidden},
		{"self", owner, `{"user_id":"user_alice"}`, http.StatusBadRequest},
		{"unknown member", owner, `{"user_id":"user_ghost"}`, http.StatusNotFound},
		{"missing target", owner, `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := tt.caller
			w := do(t, tenantRouter(&caller, h.RegisterTenantRoutes), http.MethodPost, "/organization/transfer-ownership", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusOK {
				res := decode[ownership.TransferResult](t, w)
				assert.Equal(t, "user_alice", res.PreviousOwnerID)
				assert.Equal(t, "user_bob", res.NewOwnerID)
			}
		})
	}
}
