package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
	"tenantkit/internal/ownership"
	"tenantkit/internal/types"
)

// OwnershipService hands an organization to another member.
type OwnershipService interface {
	Transfer(ctx context.Context, actor types.Caller, targetUserID string) (*ownership.TransferResult, error)
}

// TransferOwnershipRequest is the body of
// POST /{tenant}/organization/transfer-ownership.
type TransferOwnershipRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// OwnershipHandler serves the ownership transfer endpoint.
type OwnershipHandler struct {
	svc       OwnershipService
	validator *core.Validator
}

// NewOwnershipHandler builds an OwnershipHandler.
func NewOwnershipHandler(svc OwnershipService, v *core.Validator) *OwnershipHandler {
	if v == nil {
		v = core.NewValidator()
	}
	return &OwnershipHandler{svc: svc, validator: v}
}

// RegisterTenantRoutes mounts endpoints under /{tenant}.
func (h *OwnershipHandler) RegisterTenantRoutes(r chi.Router) {
	r.Post("/organization/transfer-ownership", h.Transfer)
}

// Transfer handles POST /{tenant}/organization/transfer-ownership. The
// caller must be the owner and ends up as an admin.
func (h *OwnershipHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req TransferOwnershipRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	res, err := h.svc.Transfer(r.Context(), caller, req.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, res)
}
