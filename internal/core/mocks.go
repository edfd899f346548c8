package core

import (
	"context"
	"sync"

	"tenantkit/internal/types"
)

// MockAuthenticator resolves every token in Sessions; any other token is
// auth_token_invalid. Err, when set, is returned for every call.
type MockAuthenticator struct {
	mu       sync.Mutex
	Sessions map[string]*types.User
	Err      error
	Calls    []string
}

func (m *MockAuthenticator) Authenticate(_ context.Context, token string) (*types.User, *types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, token)
	if m.Err != nil {
		return nil, nil, m.Err
	}
	user, ok := m.Sessions[token]
	if !ok {
		return nil, nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "session is invalid or expired", nil)
	}
	return user, &types.Session{ID: "sess_" + token, UserID: user.ID}, nil
}

// MockOrgLookup serves organizations by slug.
type MockOrgLookup struct {
	Orgs map[string]*types.Organization
}

func (m *MockOrgLookup) GetBySlug(_ context.Context, slug string) (*types.Organization, error) {
	if org, ok := m.Orgs[slug]; ok {
		return org, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
}

// MockMembershipLookup serves memberships keyed by "orgID/userID".
type MockMembershipLookup struct {
	Memberships map[string]*types.Membership
}

func (m *MockMembershipLookup) Get(_ context.Context, orgID, userID string) (*types.Membership, error) {
	if mem, ok := m.Memberships[orgID+"/"+userID]; ok {
		return mem, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundMembership, "membership not found", nil)
}

// StaticFlags is a FlagChecker over a fixed map.
type StaticFlags map[string]bool

func (f StaticFlags) IsEnabled(key string) bool { return f[key] }
