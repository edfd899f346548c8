// Package handlers contains the HTTP handlers of the tenantkit API.
//
// Each handler decodes and validates the request, delegates to a service,
// and encodes the response. Cookies and other HTTP-only concerns stay here.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/audit"
	"tenantkit/internal/auth"
	"tenantkit/internal/core"
	"tenantkit/internal/i18n"
	"tenantkit/internal/types"
)

// --- DTOs ---

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Language string `json:"language,omitempty" validate:"omitempty,max=10"`
}

// PreferencesRequest is the body of PATCH /auth/me/preferences.
type PreferencesRequest struct {
	Language string `json:"language,omitempty" validate:"omitempty,max=10"`
	Theme    string `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login. Browsers use the cookies set
// alongside it; API clients send Token as a Bearer credential.
type AuthResponse struct {
	User          *types.User               `json:"user"`
	Token         string                    `json:"token"`
	CSRFToken     string                    `json:"csrf_token"`
	ExpiresAt     time.Time                 `json:"expires_at"`
	Organizations []*types.UserOrganization `json:"organizations"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	User          *types.User               `json:"user"`
	Organizations []*types.UserOrganization `json:"organizations"`
}

// --- Service Interfaces ---

// AuthService creates and ends sessions.
type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput, client types.ClientInfo) (*types.User, *auth.IssuedSession, error)
	Login(ctx context.Context, email, password string, client types.ClientInfo) (*types.User, *auth.IssuedSession, error)
	Logout(ctx context.Context, sessionID string) error
	UpdatePreferences(ctx context.Context, userID string, prefs types.UserPreferences) (*types.User, error)
}

// OrganizationLister lists the organizations a user belongs to.
type OrganizationLister interface {
	ListMine(ctx context.Context, userID string) ([]*types.UserOrganization, error)
}

// --- Cookie Configuration ---

// CookieConfig defines the attributes of the session cookie. The CSRF cookie
// shares them except HttpOnly, since browsers must read it.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
	MaxAge   int // seconds
	Path     string
}

// DefaultCookieConfig is HttpOnly, Secure, SameSite=Lax with a 7 day lifetime.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     core.DefaultSessionCookie,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   7 * 24 * 60 * 60,
		Path:     "/",
	}
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	svc          AuthService
	orgs         OrganizationLister
	audit        audit.Recorder
	validator    *core.Validator
	cookieConfig CookieConfig
	newCSRF      func() (string, error)
	logger       *slog.Logger
}

// NewAuthHandler builds an AuthHandler. A nil recorder discards audit events.
func NewAuthHandler(svc AuthService, orgs OrganizationLister, rec audit.Recorder, v *core.Validator, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	if rec == nil {
		rec = audit.Discard{}
	}
	if v == nil {
		v = core.NewValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cookies.Name == "" {
		cookies.Name = core.DefaultSessionCookie
	}
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &AuthHandler{
		svc:          svc,
		orgs:         orgs,
		audit:        rec,
		validator:    v,
		cookieConfig: cookies,
		newCSRF:      auth.GenerateToken,
		logger:       logger,
	}
}

// RegisterPublicRoutes mounts the unauthenticated endpoints.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
}

// RegisterSessionRoutes mounts the endpoints that need a session.
func (h *AuthHandler) RegisterSessionRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
	r.Patch("/auth/me/preferences", h.UpdatePreferences)
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Language == "" {
		req.Language = r.Header.Get("Accept-Language")
	}

	user, issued, err := h.svc.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Language: i18n.Normalize(preferredLanguage(req.Language)),
	}, types.GetClientInfo(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.respondWithSession(w, r, http.StatusCreated, user, issued, []*types.UserOrganization{})
}

// Login handles POST /auth/login. A session.create event is recorded in
// every organization the user belongs to.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, issued, err := h.svc.Login(r.Context(), req.Email, req.Password, types.GetClientInfo(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	orgs, err := h.orgs.ListMine(r.Context(), user.ID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to list organizations after login", "user_id", user.ID, "error", err)
	}
	if orgs == nil {
		orgs = []*types.UserOrganization{}
	}
	for _, org := range orgs {
		h.audit.Record(r.Context(), audit.Event{
			OrganizationID: org.ID,
			ActorID:        user.ID,
			Action:         types.AuditActionSessionCreate,
			TargetType:     "session",
			TargetID:       issued.Session.ID,
		})
	}

	h.respondWithSession(w, r, http.StatusOK, user, issued, orgs)
}

// Logout handles POST /auth/logout. The cookies are cleared even when the
// session row is already gone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	if err := h.svc.Logout(r.Context(), actor.SessionID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.clearCookies(w)
	core.NoContent(w)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUser(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	orgs, err := h.orgs.ListMine(r.Context(), user.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []*types.UserOrganization{}
	}

	core.JSON(w, r, http.StatusOK, MeResponse{User: user, Organizations: orgs})
}

// UpdatePreferences handles PATCH /auth/me/preferences.
func (h *AuthHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUser(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}
	var req PreferencesRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	prefs := types.UserPreferences{Theme: types.Theme(req.Theme)}
	if req.Language != "" {
		prefs.Language = i18n.Normalize(req.Language)
	}
	updated, err := h.svc.UpdatePreferences(r.Context(), user.ID, prefs)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, updated)
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, status int, user *types.User, issued *auth.IssuedSession, orgs []*types.UserOrganization) {
	csrf, err := h.newCSRF()
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to issue session", err))
		return
	}

	token := issued.Token.Unmask()
	h.setCookie(w, h.cookieConfig.Name, token, true)
	h.setCookie(w, core.CSRFCookie, csrf, false)

	core.JSON(w, r, status, AuthResponse{
		User:          user,
		Token:         token,
		CSRFToken:     csrf,
		ExpiresAt:     issued.Session.ExpiresAt,
		Organizations: orgs,
	})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   h.cookieConfig.MaxAge,
		Path:     h.cookieConfig.Path,
		Domain:   h.cookieConfig.Domain,
		Secure:   h.cookieConfig.Secure,
		HttpOnly: httpOnly && h.cookieConfig.HttpOnly,
		SameSite: h.cookieConfig.SameSite,
	})
}

func (h *AuthHandler) clearCookies(w http.ResponseWriter) {
	for _, c := range []struct {
		name     string
		httpOnly bool
	}{{h.cookieConfig.Name, h.cookieConfig.HttpOnly}, {core.CSRFCookie, false}} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0).UTC(),
			Path:     h.cookieConfig.Path,
			Domain:   h.cookieConfig.Domain,
			Secure:   h.cookieConfig.Secure,
			HttpOnly: c.httpOnly,
			SameSite: h.cookieConfig.SameSite,
		})
	}
}

// preferredLanguage returns the first tag of an Accept-Language style list.
func preferredLanguage(header string) string {
	if header == "" {
		return ""
	}
	first := strings.Split(header, ",")[0]
	first = strings.TrimSpace(strings.Split(first, ";")[0])
	if first == "*" {
		return ""
	}
	return first
}
