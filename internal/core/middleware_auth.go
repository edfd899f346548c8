package core

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/types"
)

// DefaultSessionCookie is used when the config names no cookie.
const DefaultSessionCookie = "tenantkit_session"

// RequireSession authenticates the request from a Bearer token or the
// session cookie and stores the Actor and User in the context. Missing
// credentials are auth_token_missing; unknown or expired sessions are
// auth_token_invalid. Cookie-authenticated writes must pass the CSRF check.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			Error(w, r, types.NewAppError(types.ErrCodeUpstreamUnavailable, "authentication is not configured", nil))
			return
		}

		token, fromCookie := s.sessionToken(r)
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
			return
		}
		if fromCookie {
			if err := checkCSRF(r); err != nil {
				Error(w, r, err)
				return
			}
		}

		user, sess, err := s.Authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if types.CodeOf(err).HTTPStatus() >= 500 {
				types.LoggerFromContext(r.Context()).Error("session lookup failed", "error", err)
			}
			Error(w, r, err)
			return
		}

		ctx := types.WithActor(r.Context(), types.Actor{
			ID:        user.ID,
			Type:      types.ActorTypeUser,
			Email:     user.Email,
			SessionID: sess.ID,
		})
		ctx = types.WithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireMembership resolves the {tenant} URL parameter to an organization
// and requires the session user to hold an active membership in it. The
// resulting Caller is stored in the context. An unknown slug is 404; a
// non-member is 403.
func (s *Server) RequireMembership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := types.GetActor(r.Context())
		if !ok {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
			return
		}

		slug := chi.URLParam(r, "tenant")
		org, err := s.Orgs.GetBySlug(r.Context(), slug)
		if err != nil {
			Error(w, r, err)
			return
		}

		m, err := s.Memberships.Get(r.Context(), org.ID, actor.ID)
		if err != nil {
			if types.CodeOf(err) == types.ErrCodeNotFoundMembership {
				err = types.NewAppError(types.ErrCodePermissionNotMember, "you are not a member of this organization", nil)
			}
			Error(w, r, err)
			return
		}
		if !m.IsActive() {
			Error(w, r, types.NewAppError(types.ErrCodePermissionNotMember, "your membership is not active", nil))
			return
		}

		ctx := types.WithCaller(r.Context(), types.Caller{
			UserID:         actor.ID,
			Email:          actor.Email,
			OrganizationID: org.ID,
			Role:           m.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireFeature answers 404 while the flag key is off.
func (s *Server) RequireFeature(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Flags == nil || !s.Flags.IsEnabled(key) {
				Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundFeature,
					"this feature is not enabled", nil, map[string]any{"feature": key}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionToken returns the session token and whether it came from the
// cookie. The Authorization header wins over the cookie.
func (s *Server) sessionToken(r *http.Request) (string, bool) {
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		return token, false
	}
	if c, err := r.Cookie(s.SessionCookieName()); err == nil {
		if token := strings.TrimSpace(c.Value); token != "" {
			return token, true
		}
	}
	return "", false
}

// SessionCookieName is the configured session cookie name.
func (s *Server) SessionCookieName() string {
	if s.Config.Auth.SessionCookie != "" {
		return s.Config.Auth.SessionCookie
	}
	return DefaultSessionCookie
}

// extractBearerToken returns the token of a "Bearer <token>" header value.
// The scheme is matched case-insensitively.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
