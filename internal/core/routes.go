package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"

	"tenantkit/internal/audit"
	"tenantkit/internal/tenant"
	"tenantkit/internal/types"
)

const defaultRequestTimeout = 29 * time.Second

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
}

// MountRoutes registers the global middleware chain and every route group.
//
// Layout:
//
//	GET  /healthz
//	/api/v1/...        PublicAPI, then SessionAPI behind RequireSession
//	/{tenant}/...      GatedTenantRoutes, then TenantRoutes behind
//	                   RequireSession and RequireMembership
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Get("/healthz", s.HandleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		for _, register := range s.PublicAPI {
			register(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)
			for _, register := range s.SessionAPI {
				register(r)
			}
		})
	})

	s.router.Route("/{tenant}", func(r chi.Router) {
		for key, registrars := range s.GatedTenantRoutes {
			r.Group(func(r chi.Router) {
				r.Use(s.RequireFeature(key), s.RequireSession, s.RequireMembership)
				for _, register := range registrars {
					register(r)
				}
			})
		}
		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession, s.RequireMembership)
			for _, register := range s.TenantRoutes {
				register(r)
			}
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(errCodeNotFoundRoute, "no route matches "+r.URL.Path, nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(errCodeMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path, nil))
	})
}

// Local codes for router-level failures. Their prefixes map them to 404 and
// 400 through ErrorCode.HTTPStatus.
const (
	errCodeNotFoundRoute    types.ErrorCode = "not_found_route"
	errCodeMethodNotAllowed types.ErrorCode = "validation_method_not_allowed"
)

// registerGlobalMiddleware applies middleware in order. The tenant
// middleware runs on the root router so its path rewrite happens before
// route matching.
//
//  1. Recoverer       - outermost, catches panics
//  2. ContextTimeout  - soft deadline on the request context
//  3. RequestID       - correlation ID in context and response header
//  4. SecurityHeaders
//  5. RequestLogger   - request-scoped logger, redacted headers
//  6. CORS            - go-chi/cors
//  7. Compression     - gzhttp
//  8. ClientInfo      - IP and user agent for audit entries
//  9. Tenant          - resolves the tenant and rewrites subdomain paths
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(cors.Handler(s.corsOptions()))
	s.router.Use(compress)
	s.router.Use(audit.ClientInfoMiddleware)
	s.router.Use(tenant.Middleware(s.bypassPrefixes()))
}

func (s *Server) corsOptions() cors.Options {
	origins := []string{"*"}
	if len(s.Config.Security.CorsAllowedOrigins) > 0 {
		origins = s.Config.Security.CorsAllowedOrigins
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func (s *Server) bypassPrefixes() []string {
	if len(s.Config.Tenant.BypassPrefixes) > 0 {
		return s.Config.Tenant.BypassPrefixes
	}
	return tenant.DefaultBypassPrefixes
}

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id or mints a new one,
// storing it in the context and echoing it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), requestID)))
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
