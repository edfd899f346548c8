package tenant

import (
	"net/http"
	"strings"

	"tenantkit/internal/types"
)

// Middleware resolves the tenant for every request not under a bypass
// prefix. Subdomain requests have their path rewritten to /{tenant}/...
// so they reach the same tenant routes as path-based requests. The
// resolution is passed downstream through the request context.
//
// It must be installed on the root router (before route matching) for the
// rewrite to take effect.
func Middleware(bypass []string) func(http.Handler) http.Handler {
	if bypass == nil {
		bypass = DefaultBypassPrefixes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Bypass(r.URL.Path, bypass) {
				next.ServeHTTP(w, r)
				return
			}

			res := Resolve(r.Host, r.URL.Path)
			if !res.HasTenant() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := types.WithTenant(r.Context(), types.TenantInfo{
				Slug:        res.Tenant,
				IsSubdomain: res.IsSubdomain,
				Hostname:    res.Hostname,
			})
			r = r.WithContext(ctx)

			if res.IsSubdomain {
				r = rewritePath(r, res.Tenant)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rewritePath prefixes the request path with /{tenant} unless it already
// carries that prefix. The URL is copied so the original request is left
// untouched.
func rewritePath(r *http.Request, tenant string) *http.Request {
	prefix := "/" + tenant
	path := r.URL.Path
	if path == prefix || strings.HasPrefix(path, prefix+"/") {
		return r
	}
	if path == "" || path == "/" {
		path = ""
	}

	u := *r.URL
	u.Path = prefix + path
	u.RawPath = ""
	r.URL = &u
	return r
}
