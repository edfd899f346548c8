package core

import (
	"context"

	"tenantkit/internal/types"
)

// Authenticator resolves a raw session token to its user and session.
// *auth.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.User, *types.Session, error)
}

// OrgLookup finds the organization a tenant slug names.
type OrgLookup interface {
	GetBySlug(ctx context.Context, slug string) (*types.Organization, error)
}

// MembershipLookup loads one user's membership in one organization.
type MembershipLookup interface {
	Get(ctx context.Context, orgID, userID string) (*types.Membership, error)
}

// FlagChecker reports whether a feature flag is on.
type FlagChecker interface {
	IsEnabled(key string) bool
}
