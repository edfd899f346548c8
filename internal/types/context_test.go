package types

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithActor_GetActor(t *testing.T) {
	t.Run("round-trip stores and retrieves actor", func(t *testing.T) {
		actor := Actor{ID: "user-123", Type: ActorTypeUser, Email: "a@acme.com", SessionID: "sess-1"}
		got, ok := GetActor(WithActor(context.Background(), actor))
		if !ok {
			t.Fatal("expected ok to be true, got false")
		}
		if got != actor {
			t.Errorf("got %+v, want %+v", got, actor)
		}
	})

	t.Run("returns false when no actor in context", func(t *testing.T) {
		actor, ok := GetActor(context.Background())
		if ok {
			t.Error("expected ok to be false for empty context")
		}
		if actor.ID != "" {
			t.Errorf("expected empty ID, got %q", actor.ID)
		}
	})
}

func TestWithCaller_GetCaller(t *testing.T) {
	caller := Caller{UserID: "u-1", Email: "a@acme.com", OrganizationID: "org-1", Role: RoleOwner}
	got, ok := GetCaller(WithCaller(context.Background(), caller))
	if !ok || got != caller {
		t.Errorf("GetCaller = %+v, %v", got, ok)
	}

	if _, ok := GetCaller(context.Background()); ok {
		t.Error("expected no caller in empty context")
	}
}

func TestWithTenant_GetTenant(t *testing.T) {
	info := TenantInfo{Slug: "acme", IsSubdomain: true, Hostname: "acme.example.com"}
	got, ok := GetTenant(WithTenant(context.Background(), info))
	if !ok || got != info {
		t.Errorf("GetTenant = %+v, %v", got, ok)
	}
}

func TestClientInfo_DefaultsToZero(t *testing.T) {
	if got := GetClientInfo(context.Background()); got != (ClientInfo{}) {
		t.Errorf("expected zero ClientInfo, got %+v", got)
	}
	info := ClientInfo{IPAddress: "203.0.113.7", UserAgent: "curl/8"}
	if got := GetClientInfo(WithClientInfo(context.Background(), info)); got != info {
		t.Errorf("GetClientInfo = %+v", got)
	}
}

func TestWithRequestID_GetRequestID(t *testing.T) {
	id := "req-abc-123-def-456"
	if got := GetRequestID(WithRequestID(context.Background(), id)); got != id {
		t.Errorf("got %q, want %q", got, id)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestWithLogger_LoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	LoggerFromContext(WithLogger(context.Background(), logger)).Info("test message")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Error("expected slog.Default for empty context")
	}
}

func TestWithUser_GetUser(t *testing.T) {
	u := &User{ID: "user_1", Email: "a@acme.com"}
	got, ok := GetUser(WithUser(context.Background(), u))
	if !ok || got != u {
		t.Errorf("GetUser = %+v, %v", got, ok)
	}
	if _, ok := GetUser(context.Background()); ok {
		t.Error("expected no user in empty context")
	}
}

func TestContextKeys_ArePrivate(t *testing.T) {
	//lint:ignore SA1029 deliberately using a bare string key
	ctx := context.WithValue(context.Background(), "actor", Actor{ID: "spoofed"}) //nolint:staticcheck
	if _, ok := GetActor(ctx); ok {
		t.Error("plain string key must not collide with the typed context key")
	}
}
