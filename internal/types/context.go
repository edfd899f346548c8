package types

import (
	"context"
	"log/slog"
)

// ActorType identifies the kind of authenticated entity making a request.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Actor represents the authenticated user performing an operation. It carries
// no organization scope; see Caller for the tenant-scoped identity.
type Actor struct {
	ID        string
	Type      ActorType
	Email     string
	SessionID string
}

// Caller is the identity of a request acting inside one organization: the
// authenticated user plus the role their active membership grants. Services
// receive it as an explicit argument.
type Caller struct {
	UserID         string
	Email          string
	OrganizationID string
	Role           Role
}

// TenantInfo is the tenant resolved for the current request.
type TenantInfo struct {
	Slug        string
	IsSubdomain bool
	Hostname    string
}

// ClientInfo carries request metadata captured for audit entries. Empty
// strings mean the value was unavailable.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Context Keys
type contextKey string

const (
	actorKey      contextKey = "actor"
	userKey       contextKey = "user"
	callerKey     contextKey = "caller"
	tenantKey     contextKey = "tenant"
	clientInfoKey contextKey = "client_info"
	requestIDKey  contextKey = "request_id"
	loggerKey     contextKey = "logger"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithUser stores the authenticated user record in the context.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser retrieves the authenticated user record from the context.
func GetUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// WithCaller stores the organization-scoped Caller in the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// GetCaller retrieves the Caller from the context.
func GetCaller(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

// WithTenant stores the resolved tenant in the context.
func WithTenant(ctx context.Context, tenant TenantInfo) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// GetTenant retrieves the resolved tenant from the context.
func GetTenant(ctx context.Context) (TenantInfo, bool) {
	tenant, ok := ctx.Value(tenantKey).(TenantInfo)
	return tenant, ok
}

// WithClientInfo stores request client metadata in the context.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, info)
}

// GetClientInfo retrieves request client metadata from the context. Returns
// the zero value when none was captured.
func GetClientInfo(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey).(ClientInfo)
	return info
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a request-scoped logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the request-scoped logger, or slog.Default when
// none has been set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
