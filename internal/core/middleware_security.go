package core

import (
	"crypto/subtle"
	"net/http"

	"tenantkit/internal/types"
)

// Double-submit CSRF protection for cookie sessions. Login sets a readable
// CSRF cookie next to the session cookie; browsers echo it in the header.
const (
	CSRFCookie = "tenantkit_csrf"
	CSRFHeader = "X-CSRF-Token"
)

const errCodeCSRFInvalid types.ErrorCode = "permission_csrf_invalid"

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// checkCSRF validates a cookie-authenticated request. Safe methods pass;
// others need the CSRF header to equal the CSRF cookie. Bearer requests are
// never checked.
func checkCSRF(r *http.Request) error {
	if isSafeMethod(r.Method) {
		return nil
	}
	header := r.Header.Get(CSRFHeader)
	cookie, err := r.Cookie(CSRFCookie)
	if header == "" || err != nil || cookie.Value == "" {
		return types.NewAppError(errCodeCSRFInvalid, "CSRF token is required for this request", nil)
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
		return types.NewAppError(errCodeCSRFInvalid, "CSRF token is invalid", nil)
	}
	return nil
}
