package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/invitation"
	"tenantkit/internal/types"
)

type mockInvitationService struct {
	createFn func(ctx context.Context, actor types.Caller, in invitation.CreateInput) (*invitation.CreateResult, error)
	resendFn func(ctx context.Context, actor types.Caller, id string) (*invitation.ResendResult, error)
	cancelFn func(ctx context.Context, actor types.Caller, id string) error
	acceptFn func(ctx context.Context, user *types.User, token string) (*types.Membership, error)
	listFn   func(ctx context.Context, actor types.Caller) ([]invitation.ListItem, error)
}

func (m *mockInvitationService) Create(ctx context.Context, actor types.Caller, in invitation.CreateInput) (*invitation.CreateResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return nil, errors.New("Create not mocked")
}

func (m *mockInvitationService) Resend(ctx context.Context, actor types.Caller, id string) (*invitation.ResendResult, error) {
	if m.resendFn != nil {
		return m.resendFn(ctx, actor, id)
	}
	return nil, errors.New("Resend not mocked")
}

func (m *mockInvitationService) Cancel(ctx context.Context, actor types.Caller, id string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, actor, id)
	}
	return nil
}

func (m *mockInvitationService) Accept(ctx context.Context, user *types.User, token string) (*types.Membership, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, user, token)
	}
	return nil, errors.New("Accept not mocked")
}

func (m *mockInvitationService) List(ctx context.Context, actor types.Caller) ([]invitation.ListItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor)
	}
	return nil, nil
}

func pendingInvitation() *types.Invitation {
	return &types.Invitation{
		ID:             "inv_1",
		OrganizationID: "org_acme",
		Email:          "carol@acme.test",
		Role:           types.RoleMember,
		Token:          types.SecretString("secret-token"),
		ExpiresAt:      testNow.Add(types.InvitationTTL),
		CreatedAt:      testNow,
	}
}

func invitationRouter(svc InvitationService) http.Handler {
	h := NewInvitationHandler(svc, nil)
	caller := ownerCaller()
	return tenantRouter(&caller, h.RegisterTenantRoutes)
}

func TestCreateInvitation(t *testing.T) {
	var got invitation.CreateInput
	svc := &mockInvitationService{
		createFn: func(_ context.Context, _ types.Caller, in invitation.CreateInput) (*invitation.CreateResult, error) {
			got = in
			return &invitation.CreateResult{Invitation: pendingInvitation(), EmailSent: false}, nil
		},
	}

	w := do(t, invitationRouter(svc), http.MethodPost, "/invitations", `{"email":"carol@acme.test","role":"member"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "carol@acme.test", got.Email)
	assert.Equal(t, types.RoleMember, got.Role)

	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["email_sent"])
	assert.NotContains(t, w.Body.String(), "secret-token")
}

func TestCreateInvitation_Errors(t *testing.T) {
	conflict := &mockInvitationService{
		createFn: func(context.Context, types.Caller, invitation.CreateInput) (*invitation.CreateResult, error) {
			return nil, types.NewAppError(types.ErrCodeConflictInvitationPending, "already invited", nil)
		},
	}

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  types.ErrorCode
	}{
		{"owner role", `{"email":"carol@acme.test","role":"owner"}`, http.StatusBadRequest, types.ErrCodeValidationInvalidRole},
		{"bad email", `{"email":"carol","role":"member"}`, http.StatusBadRequest, types.ErrCodeValidationInvalidEmail},
		{"pending", `{"email":"carol@acme.test","role":"member"}`, http.StatusConflict, types.ErrCodeConflictInvitationPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, invitationRouter(conflict), http.MethodPost, "/invitations", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, string(tt.wantErr), errorCode(t, w))
		})
	}
}

func TestResendInvitation(t *testing.T) {
	svc := &mockInvitationService{
		resendFn: func(_ context.Context, _ types.Caller, id string) (*invitation.ResendResult, error) {
			if id == "inv_old" {
				return nil, types.NewAppError(types.ErrCodeInvitationExpired, "invitation has expired", nil)
			}
			return &invitation.ResendResult{Invitation: pendingInvitation(), EmailSent: true}, nil
		},
	}
	router := invitationRouter(svc)

	w := do(t, router, http.MethodPost, "/invitations/inv_1/resend", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["email_sent"])

	w = do(t, router, http.MethodPost, "/invitations/inv_old/resend", "")
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestCancelInvitation(t *testing.T) {
	var cancelled string
	svc := &mockInvitationService{
		cancelFn: func(_ context.Context, _ types.Caller, id string) error {
			cancelled = id
			return nil
		},
	}

	w := do(t, invitationRouter(svc), http.MethodDelete, "/invitations/inv_1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "inv_1", cancelled)
}

func TestListInvitations(t *testing.T) {
	svc := &mockInvitationService{
		listFn: func(context.Context, types.Caller) ([]invitation.ListItem, error) {
			return []invitation.ListItem{{Invitation: pendingInvitation(), Expired: true}}, nil
		},
	}

	w := do(t, invitationRouter(svc), http.MethodGet, "/invitations", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Invitations []map[string]any `json:"invitations"`
	}](t, w)
	require.Len(t, body.Invitations, 1)
	assert.Equal(t, true, body.Invitations[0]["expired"])
	assert.Equal(t, "inv_1", body.Invitations[0]["id"])

	w = do(t, invitationRouter(&mockInvitationService{}), http.MethodGet, "/invitations", "")
	assert.JSONEq(t, `{"invitations":[]}`, w.Body.String())
}

func TestAcceptInvitation(t *testing.T) {
	var gotToken string
	svc := &mockInvitationService{
		acceptFn: func(_ context.Context, user *types.User, token string) (*types.Membership, error) {
			gotToken = token
			if user.Email != "alice@acme.test" {
				return nil, types.NewAppError(types.ErrCodePermissionEmailMismatch, "wrong recipient", nil)
			}
			return &types.Membership{OrganizationID: "org_acme", UserID: user.ID, Role: types.RoleMember, Status: types.MembershipActive}, nil
		},
	}
	h := NewInvitationHandler(svc, nil)

	w := do(t, sessionRouter(testUser(), h.RegisterSessionRoutes), http.MethodPost, "/invitations/accept", `{"token":"secret-token"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "secret-token", gotToken)

	other := testUser()
	other.Email = "mallory@evil.test"
	w = do(t, sessionRouter(other, h.RegisterSessionRoutes), http.MethodPost, "/invitations/accept", `{"token":"secret-token"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, sessionRouter(nil, func(r chi.Router) { h.RegisterSessionRoutes(r) }), http.MethodPost, "/invitations/accept", `{"token":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
