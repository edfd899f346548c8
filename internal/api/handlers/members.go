package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
	"tenantkit/internal/types"
)

// MemberService manages the memberships of one organization.
type MemberService interface {
	ListMembers(ctx context.Context, actor types.Caller) ([]*types.MemberView, error)
	ChangeRole(ctx context.Context, actor types.Caller, userID string, role types.Role) (*types.Membership, error)
	RemoveMember(ctx context.Context, actor types.Caller, userID string) error
}

// ChangeRoleRequest is the body of PATCH /{tenant}/members/{userID}.
type ChangeRoleRequest struct {
	Role types.Role `json:"role" validate:"required,role"`
}

// MemberHandler serves /{tenant}/members.
type MemberHandler struct {
	svc       MemberService
	validator *core.Validator
}

// NewMemberHandler builds a MemberHandler.
func NewMemberHandler(svc MemberService, v *core.Validator) *MemberHandler {
	if v == nil {
		v = core.NewValidator()
	}
	return &MemberHandler{svc: svc, validator: v}
}

// RegisterTenantRoutes mounts endpoints under /{tenant}.
func (h *MemberHandler) RegisterTenantRoutes(r chi.Router) {
	r.Get("/members", h.List)
	r.Patch("/members/{userID}", h.ChangeRole)
	r.Delete("/members/{userID}", h.Remove)
}

// List handles GET /{tenant}/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	members, err := h.svc.ListMembers(r.Context(), caller)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"members": members})
}

// ChangeRole handles PATCH /{tenant}/members/{userID}.
func (h *MemberHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	m, err := h.svc.ChangeRole(r.Context(), caller, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, m)
}

// Remove handles DELETE /{tenant}/members/{userID}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(r.Context(), caller, chi.URLParam(r, "userID")); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}
