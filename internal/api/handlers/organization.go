package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
	"tenantkit/internal/organization"
	"tenantkit/internal/types"
)

// --- Service Interfaces ---

// OrganizationService is the organization lifecycle used by this handler.
type OrganizationService interface {
	Create(ctx context.Context, creator *types.User, in organization.CreateInput) (*organization.View, error)
	ListMine(ctx context.Context, userID string) ([]*types.UserOrganization, error)
	Get(ctx context.Context, actor types.Caller) (*organization.View, error)
	Update(ctx context.Context, actor types.Caller, in organization.UpdateInput) (*organization.View, error)
	Delete(ctx context.Context, actor types.Caller) error
}

// --- Request Models ---

// CreateOrganizationRequest is the body of POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Slug string `json:"slug" validate:"required,slug"`
}

// UpdateOrganizationRequest is the body of PATCH /{tenant}/organization.
// Absent fields are left unchanged; an empty logo_url removes the logo.
type UpdateOrganizationRequest struct {
	Name     *string                     `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Slug     *string                     `json:"slug,omitempty" validate:"omitnil,slug"`
	LogoURL  *string                     `json:"logo_url,omitempty" validate:"omitnil,weburl,max=2048"`
	Settings *types.OrganizationSettings `json:"settings,omitempty"`
}

// OrganizationHandler serves organization lifecycle endpoints.
type OrganizationHandler struct {
	svc       OrganizationService
	validator *core.Validator
}

// NewOrganizationHandler builds an OrganizationHandler.
func NewOrganizationHandler(svc OrganizationService, v *core.Validator) *OrganizationHandler {
	if v == nil {
		v = core.NewValidator()
	}
	return &OrganizationHandler{svc: svc, validator: v}
}

// RegisterSessionRoutes mounts endpoints that act outside any tenant.
func (h *OrganizationHandler) RegisterSessionRoutes(r chi.Router) {
	r.Post("/organizations", h.Create)
	r.Get("/organizations", h.ListMine)
}

// RegisterTenantRoutes mounts endpoints under /{tenant}.
func (h *OrganizationHandler) RegisterTenantRoutes(r chi.Router) {
	r.Get("/organization", h.Get)
	r.Patch("/organization", h.Update)
	r.Delete("/organization", h.Delete)
}

// Create handles POST /organizations. The session user becomes the owner.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUser(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CreateOrganizationRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	view, err := h.svc.Create(r.Context(), user, organization.CreateInput{Name: req.Name, Slug: req.Slug})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, view)
}

// ListMine handles GET /organizations.
func (h *OrganizationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUser(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	orgs, err := h.svc.ListMine(r.Context(), user.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []*types.UserOrganization{}
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"organizations": orgs})
}

// Get handles GET /{tenant}/organization.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Get(r.Context(), caller)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, view)
}

// Update handles PATCH /{tenant}/organization.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req UpdateOrganizationRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	view, err := h.svc.Update(r.Context(), caller, organization.UpdateInput{
		Name:     req.Name,
		Slug:     req.Slug,
		LogoURL:  req.LogoURL,
		Settings: req.Settings,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, view)
}

// Delete handles DELETE /{tenant}/organization. Owner only.
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), caller); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// callerFrom reads the tenant Caller set by the membership middleware and
// writes a 401 when it is missing.
func callerFrom(w http.ResponseWriter, r *http.Request) (types.Caller, bool) {
	caller, ok := types.GetCaller(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return types.Caller{}, false
	}
	return caller, true
}
