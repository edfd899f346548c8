package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/core"
	"tenantkit/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() *types.User {
	return &types.User{
		ID:        "user_alice",
		Email:     "alice@acme.test",
		Name:      "Alice",
		CreatedAt: testNow,
	}
}

func ownerCaller() types.Caller {
	return types.Caller{UserID: "user_alice", Email: "alice@acme.test", OrganizationID: "org_acme", Role: types.RoleOwner}
}

// tenantRouter mounts routes behind a middleware that injects caller, the
// way the membership guard does in production.
func tenantRouter(caller *types.Caller, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if caller != nil {
				ctx = types.WithCaller(ctx, *caller)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	register(r)
	return r
}

// sessionRouter mounts routes behind a middleware that injects the session
// user and actor.
func sessionRouter(user *types.User, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if user != nil {
				ctx = types.WithUser(ctx, user)
				ctx = types.WithActor(ctx, types.Actor{ID: user.ID, Type: types.ActorTypeUser, Email: user.Email, SessionID: "sess_1"})
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[core.APIErrorResponse](t, w).Error.Code
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
