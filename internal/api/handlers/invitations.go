package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
	"tenantkit/internal/invitation"
	"tenantkit/internal/types"
)

// InvitationService drives the invitation lifecycle.
type InvitationService interface {
	Create(ctx context.Context, actor types.Caller, in invitation.CreateInput) (*invitation.CreateResult, error)
	Resend(ctx context.Context, actor types.Caller, id string) (*invitation.ResendResult, error)
	Cancel(ctx context.Context, actor types.Caller, id string) error
	Accept(ctx context.Context, user *types.User, token string) (*types.Membership, error)
	List(ctx context.Context, actor types.Caller) ([]invitation.ListItem, error)
}

// CreateInvitationRequest is the body of POST /{tenant}/invitations.
type CreateInvitationRequest struct {
	Email  string     `json:"email" validate:"required,email"`
	Role   types.Role `json:"role" validate:"required,invitable"`
	Locale string     `json:"locale,omitempty" validate:"omitempty,max=10"`
}

// AcceptInvitationRequest is the body of POST /invitations/accept.
type AcceptInvitationRequest struct {
	Token string `json:"token" validate:"required"`
}

// InvitationResponse reports a stored invitation and whether its email was
// handed to the mail pipeline.
type InvitationResponse struct {
	Invitation *types.Invitation `json:"invitation"`
	EmailSent  bool              `json:"email_sent"`
}

// InvitationHandler serves invitation endpoints.
type InvitationHandler struct {
	svc       InvitationService
	validator *core.Validator
}

// NewInvitationHandler builds an InvitationHandler.
func NewInvitationHandler(svc InvitationService, v *core.Validator) *InvitationHandler {
	if v == nil {
		v = core.NewValidator()
	}
	return &InvitationHandler{svc: svc, validator: v}
}

// RegisterSessionRoutes mounts the accept endpoint, which runs before the
// user belongs to the organization.
func (h *InvitationHandler) RegisterSessionRoutes(r chi.Router) {
	r.Post("/invitations/accept", h.Accept)
}

// RegisterTenantRoutes mounts endpoints under /{tenant}.
func (h *InvitationHandler) RegisterTenantRoutes(r chi.Router) {
	r.Get("/invitations", h.List)
	r.Post("/invitations", h.Create)
	r.Post("/invitations/{id}/resend", h.Resend)
	r.Delete("/invitations/{id}", h.Cancel)
}

// List handles GET /{tenant}/invitations.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	items, err := h.svc.List(r.Context(), caller)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if items == nil {
		items = []invitation.ListItem{}
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"invitations": items})
}

// Create handles POST /{tenant}/invitations.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req CreateInvitationRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Locale == "" {
		req.Locale = preferredLanguage(r.Header.Get("Accept-Language"))
	}

	res, err := h.svc.Create(r.Context(), caller, invitation.CreateInput{
		Email:  req.Email,
		Role:   req.Role,
		Locale: req.Locale,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, InvitationResponse{Invitation: res.Invitation, EmailSent: res.EmailSent})
}

// Resend handles POST /{tenant}/invitations/{id}/resend. Expired
// invitations answer 410.
func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Resend(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, InvitationResponse{Invitation: res.Invitation, EmailSent: res.EmailSent})
}

// Cancel handles DELETE /{tenant}/invitations/{id}. Idempotent.
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// Accept handles POST /invitations/accept for the session user.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUser(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req AcceptInvitationRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	m, err := h.svc.Accept(r.Context(), user, req.Token)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, m)
}
