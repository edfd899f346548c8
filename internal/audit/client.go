package audit

import (
	"net"
	"net/http"
	"strings"

	"tenantkit/internal/types"
)

// ClientIP extracts the caller's address: the first X-Forwarded-For entry,
// then the RemoteAddr host, then X-Real-IP. Returns "" when none is usable.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// No port, as in some tests and unix sockets.
			host = r.RemoteAddr
		}
		if host = strings.TrimSpace(host); host != "" {
			return host
		}
	}

	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

// ClientInfoFromRequest captures the request metadata recorded on audit
// entries.
func ClientInfoFromRequest(r *http.Request) types.ClientInfo {
	return types.ClientInfo{
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ClientInfoMiddleware stores the request's ClientInfo in its context once,
// so Record never needs the *http.Request.
func ClientInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := types.WithClientInfo(r.Context(), ClientInfoFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
